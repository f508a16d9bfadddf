package services

import (
	"fmt"
	"strings"

	"autodash/internal/logger"
)

// ClipboardService copies share links to the system clipboard where the
// platform supports it.
type ClipboardService struct {
	initialized bool
	available   bool
	last        string
}

// NewClipboardService creates a clipboard service.
func NewClipboardService() *ClipboardService {
	return &ClipboardService{}
}

// Name returns the service name "clipboard" for registration.
func (c *ClipboardService) Name() string {
	return "clipboard"
}

// Initialize probes the system clipboard. A missing clipboard is not an
// error; Copy reports it instead.
func (c *ClipboardService) Initialize() error {
	c.initialized = true
	if !clipboardAvailable {
		return nil
	}
	if err := initClipboard(); err != nil {
		logger.Debug("System clipboard unavailable", "error", err)
		return nil
	}
	c.available = true
	return nil
}

// Available reports whether Copy reaches the system clipboard.
func (c *ClipboardService) Available() bool {
	return c.available
}

// Copy writes text to the clipboard.
func (c *ClipboardService) Copy(text string) error {
	if !c.initialized {
		return fmt.Errorf("clipboard service not initialized")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("nothing to copy")
	}
	c.last = text
	if !c.available {
		return fmt.Errorf("clipboard not available on this platform")
	}
	return writeToClipboard(text)
}

// Last returns the most recent text passed to Copy.
func (c *ClipboardService) Last() string {
	return c.last
}

func init() {
	if err := GlobalRegistry.RegisterService(NewClipboardService()); err != nil {
		panic(fmt.Sprintf("failed to register clipboard service: %v", err))
	}
}

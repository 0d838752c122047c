package transport

import (
	applog "audioroute/internal/log"
)

// LoggingTransport implements the Transport interface by logging data.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs snapshots as structured fields and anything else as-is.
func (lt *LoggingTransport) Send(data any) error {
	msg, ok := data.(SnapshotMessage)
	if !ok {
		applog.Infof("LOG_TRANSPORT: Received (%T): %+v", data, data)
		return nil
	}
	selected := "none"
	if msg.Selected != nil {
		selected = msg.Selected.String()
	}
	applog.WithFields(applog.Fields{
		"sequence": msg.Sequence,
		"state":    msg.State.String(),
		"devices":  len(msg.Devices),
		"selected": selected,
		"override": msg.UserSelected != nil,
	}).Info("Audio route snapshot")
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called.")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)

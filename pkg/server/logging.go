package server

import (
	"context"
	"fmt"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/logging"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
)

var levelSeverity = map[protocol.LoggingLevel]int{
	protocol.LoggingLevelDebug:     0,
	protocol.LoggingLevelInfo:      1,
	protocol.LoggingLevelNotice:    2,
	protocol.LoggingLevelWarning:   3,
	protocol.LoggingLevelError:     4,
	protocol.LoggingLevelCritical:  5,
	protocol.LoggingLevelAlert:     6,
	protocol.LoggingLevelEmergency: 7,
}

// WithLogForwarding declares the logging capability and sends every entry
// the server's logger writes to the client as notifications/message, under
// the given logger name. Nothing is sent before notifications/initialized.
func WithLogForwarding(name string) Option {
	return func(s *Server) {
		s.forwardLogs = true
		s.forwardName = name
		s.capabilities = protocol.Merge(s.capabilities, protocol.Capabilities{Logging: &protocol.LoggingCapability{}})
	}
}

func (s *Server) forwardLog(entry *logging.Entry) {
	if !s.Initialized() {
		return
	}
	// Failures are dropped: logging them would forward them again.
	_ = s.SendLoggingMessage(context.Background(), &protocol.LoggingMessageParams{
		Level:  logging.ToProtocolLevel(entry.Level),
		Logger: s.forwardName,
		Data:   entry.Data(),
	})
}

func (s *Server) handleSetLevel(ctx context.Context, params interface{}) (interface{}, error) {
	var req protocol.SetLevelParams
	if err := protocol.DecodeParams(params, &req); err != nil {
		return nil, mcperrors.InvalidParams(fmt.Sprintf("invalid logging/setLevel params: %v", err))
	}
	if _, ok := levelSeverity[req.Level]; !ok {
		return nil, mcperrors.InvalidParams(fmt.Sprintf("unknown logging level %q", req.Level))
	}

	s.peerMu.Lock()
	s.logLevel = req.Level
	s.peerMu.Unlock()

	s.logger.Debug("client log level set", logging.String("level", string(req.Level)))
	return &protocol.EmptyResult{}, nil
}

// LogLevel returns the level the client asked for, empty when it never did.
func (s *Server) LogLevel() protocol.LoggingLevel {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	return s.logLevel
}

// SendLoggingMessage sends notifications/message. Messages below the level
// the client set through logging/setLevel are dropped silently.
func (s *Server) SendLoggingMessage(ctx context.Context, params *protocol.LoggingMessageParams) error {
	if err := s.assertNotificationCapability(protocol.NotificationMessage); err != nil {
		return err
	}
	if threshold := s.LogLevel(); threshold != "" && levelSeverity[params.Level] < levelSeverity[threshold] {
		return nil
	}
	return s.notify(ctx, protocol.NotificationMessage, params)
}

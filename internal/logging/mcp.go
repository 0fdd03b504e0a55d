package logging

import "log/slog"

// SetupStdioMode routes logs to the log file only. Stdout and stderr belong
// to the JSON-RPC stream while serving MCP over stdio.
func SetupStdioMode(level string) (func(), error) {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.FilePath = DefaultLogPath()
	cfg.Stderr = false

	cleanup, err := SetupDefault(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("stdio logging initialized", slog.String("log_file", cfg.FilePath), slog.String("level", level))
	return cleanup, nil
}

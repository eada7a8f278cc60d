package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/tailored-agentic-units/supervisor/unit"
)

const stderrTail = 512

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return strings.TrimSpace(string(b.data))
}

// CommandOperation returns an Operation that runs argv in dir to
// completion. A non-zero exit fails the operation; the tail of stderr
// becomes the failure reason. An empty argv succeeds immediately.
func CommandOperation(argv []string, dir string, env []string, logger *slog.Logger) unit.Operation {
	if len(argv) == 0 {
		return unit.Succeed
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context) (unit.Result, error) {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		if len(env) > 0 {
			cmd.Env = append(os.Environ(), env...)
		}

		stderr := &tailBuffer{limit: stderrTail}
		cmd.Stderr = stderr

		logger.Debug("running command", slog.String("command", strings.Join(argv, " ")))

		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && stderr.String() != "" {
				return unit.Failure, fmt.Errorf("%s: %w: %s", argv[0], err, stderr.String())
			}
			return unit.Failure, fmt.Errorf("%s: %w", argv[0], err)
		}
		return unit.Success, nil
	}
}

func specOperations(spec UnitSpec, logger *slog.Logger) unit.Operations {
	logger = logger.With(slog.String("unit_id", spec.ID))
	return unit.Operations{
		Start: CommandOperation(spec.Start, spec.Dir, spec.Env, logger),
		Stop:  CommandOperation(spec.Stop, spec.Dir, spec.Env, logger),
	}
}

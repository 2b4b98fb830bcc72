package cli

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"
)

// signalContext cancels on the first interrupt. Tools still running are
// stopped by the runner through the cancelled context.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, interruptSignals()...)
}

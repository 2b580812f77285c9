package controlplane

import (
	"context"
	"log/slog"
)

// AwaitWipeCommand polls until the server issues a wipe command and returns
// its target. Poll failures and empty commands are retried after the poll
// interval, indefinitely. Only ctx cancellation ends the loop early.
func (c *Client) AwaitWipeCommand(ctx context.Context, machineID string) (string, error) {
	slog.Info("await_command_start", "machine_id", machineID, "poll_interval", c.pollInterval)

	for attempt := 1; ; attempt++ {
		slog.Debug("poll_command", "machine_id", machineID, "attempt", attempt)

		cmd, err := c.PollCommand(ctx, machineID)
		switch {
		case err != nil:
			slog.Warn("poll_failed", "machine_id", machineID, "attempt", attempt, "error", err)
		case cmd.Kind == CommandWipe:
			slog.Info("wipe_command_received", "machine_id", machineID, "target", cmd.Target, "attempt", attempt)
			return cmd.Target, nil
		}

		if err := c.sleep(ctx, c.pollInterval); err != nil {
			slog.Info("await_command_cancelled", "machine_id", machineID, "error", err)
			return "", err
		}
	}
}

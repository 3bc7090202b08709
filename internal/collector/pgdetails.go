package collector

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
)

// DirPGPodDetails holds the diagnostic command output per database container.
const DirPGPodDetails = "pg_pod_details"

// PGPodDetailsFile returns the relative path of a container's diagnostics.
func PGPodDetailsFile(pod, container string) string {
	return path.Join(DirPGPodDetails, pod+"_"+container+".log")
}

// collectPGPodDetails runs the diagnostic commands in every container of
// every database pod.
func (c *Collector) collectPGPodDetails(ctx context.Context) error {
	pods, err := c.discovery.DatabasePods(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.hintNoPods("database", err)
		return fmt.Errorf("skipping database pod details: %w", err)
	}

	for _, pod := range pods {
		containers, err := c.discovery.Containers(ctx, pod)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.warn("skipping pod", "pod", pod, "error", err)
			continue
		}
		for _, ctr := range containers {
			if err := c.saveContainerDetails(ctx, pod, ctr); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.warn("failed to save container details", "pod", pod, "container", ctr, "error", err)
			}
		}
	}
	return nil
}

// saveContainerDetails writes one section per command. Failed and timed out
// commands are noted inline so the file still shows what was attempted.
func (c *Collector) saveContainerDetails(ctx context.Context, pod, container string) error {
	var buf bytes.Buffer
	for _, cmd := range c.commands.For(container) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintf(&buf, "=== %s ===\n", cmd)

		res, err := c.client.ExecInContainer(ctx, pod, container, cmd, c.rc.ExecTimeout)
		if err != nil {
			fmt.Fprintf(&buf, "--- not run: %v ---\n\n", err)
			c.warn("diagnostic command failed", "pod", pod, "container", container, "command", cmd, "error", err)
			continue
		}

		buf.Write(res.Output)
		if len(res.Output) > 0 && !bytes.HasSuffix(res.Output, []byte("\n")) {
			buf.WriteByte('\n')
		}
		switch {
		case res.TimedOut:
			fmt.Fprintf(&buf, "--- timed out after %s ---\n", c.rc.ExecTimeout)
			c.warn("diagnostic command timed out", "pod", pod, "container", container,
				"command", cmd, "timeout", c.rc.ExecTimeout)
		case !res.Success():
			fmt.Fprintf(&buf, "--- exit code %d ---\n", res.ExitCode)
			c.warn("diagnostic command failed", "pod", pod, "container", container,
				"command", cmd, "exitCode", res.ExitCode)
		}
		buf.WriteByte('\n')
	}

	file := PGPodDetailsFile(pod, container)
	if err := c.tree.WriteFile(file, buf.Bytes()); err != nil {
		return err
	}
	slog.Debug("collected", "file", file)
	return nil
}

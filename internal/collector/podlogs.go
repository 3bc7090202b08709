package collector

import (
	"context"
	"fmt"
	"log/slog"
	"path"
)

// DirPodLogs holds one log file per pod and container.
const DirPodLogs = "pod_logs"

// PodLogFile returns the relative path of a container's log.
func PodLogFile(pod, container string) string {
	return path.Join(DirPodLogs, pod+"_"+container+".log")
}

// collectPodLogs saves the current log of every container of every
// discovered pod. A pod or container that fails is skipped with a warning.
func (c *Collector) collectPodLogs(ctx context.Context) error {
	pods, err := c.discovery.AllPods(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.hintNoPods("workload", err)
		return fmt.Errorf("skipping pod logs: %w", err)
	}
	slog.Info("collecting pod logs", "pods", len(pods))

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
			if err := c.savePodLog(ctx, pod, ctr); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.warn("failed to collect container log", "pod", pod, "container", ctr, "error", err)
			}
		}
	}
	return nil
}

func (c *Collector) savePodLog(ctx context.Context, pod, container string) error {
	res, err := c.client.GetPodLogs(ctx, pod, container)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	file := PodLogFile(pod, container)
	if err := c.tree.WriteFile(file, res.Output); err != nil {
		return err
	}
	slog.Debug("collected", "file", file)
	return nil
}

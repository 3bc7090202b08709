package collector

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
)

// DirPGLogs holds the copied database log files, one subdirectory per pod.
const DirPGLogs = "pg_logs"

// PGLogPatterns are the in-container locations of rotated database logs for
// the two operator generations.
var PGLogPatterns = []string{
	"/pgdata/*/pglogs/*",
	"/pgdata/pg*/log/*",
}

// pgLogListCommand lists the candidate logs newest first. Unmatched patterns
// make ls exit non-zero, so stderr is dropped and the listing is used as is.
func pgLogListCommand() string {
	return "ls -1dt " + strings.Join(PGLogPatterns, " ") + " 2>/dev/null"
}

// parseLogListing returns up to n absolute paths from ls output.
func parseLogListing(out []byte, n int) []string {
	var paths []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() && len(paths) < n {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "/") {
			paths = append(paths, line)
		}
	}
	return paths
}

// collectPGLogs copies the newest PGLogCount logs out of every database pod.
func (c *Collector) collectPGLogs(ctx context.Context) error {
	pods, err := c.discovery.DatabasePods(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.hintNoPods("database", err)
		return fmt.Errorf("skipping database logs: %w", err)
	}
	slog.Info("collecting latest database logs; this could take a while",
		"pods", len(pods), "perPod", c.rc.PGLogCount)

	for _, pod := range pods {
		logs, err := c.listPGLogs(ctx, pod)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.warn("cannot list database logs", "pod", pod, "error", err)
			continue
		}
		if len(logs) == 0 {
			c.warn("no database logs found", "pod", pod, "patterns", PGLogPatterns)
			continue
		}
		for _, remote := range logs {
			if err := c.copyPGLog(ctx, pod, remote); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.warn("failed to copy database log", "pod", pod, "path", remote, "error", err)
			}
		}
	}
	return nil
}

func (c *Collector) listPGLogs(ctx context.Context, pod string) ([]string, error) {
	res, err := c.client.ExecInContainer(ctx, pod, DatabaseContainer, pgLogListCommand(), c.rc.ExecTimeout)
	if err != nil {
		return nil, err
	}
	logs := parseLogListing(res.Output, c.rc.PGLogCount)
	if len(logs) == 0 && res.TimedOut {
		return nil, res.Err()
	}
	return logs, nil
}

func (c *Collector) copyPGLog(ctx context.Context, pod, remote string) error {
	name := path.Base(remote)
	if name == "/" || name == "." {
		return errors.New("not a file path")
	}
	rel := path.Join(DirPGLogs, pod, name)
	local, err := c.tree.Reserve(rel)
	if err != nil {
		return err
	}

	res, err := c.client.CopyFileFromContainer(ctx, pod, DatabaseContainer, remote, local)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		c.tree.Release(rel)
		_ = os.RemoveAll(local)
		return err
	}
	slog.Debug("collected", "file", rel)
	return nil
}

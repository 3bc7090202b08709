package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supportdump/internal/archive"
	"supportdump/internal/collector"
	"supportdump/internal/config"
	"supportdump/internal/executor"
	"supportdump/internal/kubecli"
	"supportdump/internal/logging"
	"supportdump/internal/metrics"
	"supportdump/internal/version"

	"github.com/spf13/cobra"
)

var (
	opts     = config.DefaultOptions()
	logLevel = logging.DefaultLevel()
)

var rootCmd = &cobra.Command{
	Use:   "supportdump",
	Short: "PostgreSQL operator support dump collector",
	Long: `supportdump gathers resources, events, pod logs, database logs and in-container
diagnostics from one Kubernetes namespace and archives them for support analysis.
Only metadata and logs are collected; no data and no secrets.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Printf("supportdump %s\n", info)
		fmt.Printf("Go: %s %s\n", info.GoVersion, info.Platform)
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect a support dump from a namespace",
	Long: `Collects cluster and namespace information, API resources, pod logs, the latest
PostgreSQL logs and diagnostic command output from database pods, then writes a
timestamped .tar.gz archive into the destination directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runCollect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test cluster connectivity and pod discovery for a namespace",
	Long: `Detects the cluster CLI, verifies cluster access, shows the current kubeconfig
context and reports which pods the collector would find. Nothing is written.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runCheck(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func runCollect(ctx context.Context) error {
	restore := logging.SetDefault(logging.Options{Console: os.Stderr, Level: logLevel})
	defer restore()

	if err := opts.Validate(); err != nil {
		return err
	}
	if opts.Kubeconfig != "" {
		os.Setenv("KUBECONFIG", opts.Kubeconfig)
	}

	rec := metrics.NewRecorder()
	runner := executor.New(executor.WithObserver(rec.ObserveCommand))
	client, err := kubecli.Detect(ctx, runner, opts.Namespace, kubecli.Backend(opts.Backend))
	if err != nil {
		return err
	}

	rc, err := config.NewRunContext(opts, client.Backend(), time.Now())
	if err != nil {
		return err
	}

	col := collector.New(rc, client,
		collector.WithMetrics(rec),
		collector.WithConsole(os.Stderr, logLevel),
	)
	report, err := col.Run(ctx)
	if report != nil {
		printSummary(report)
	}
	return err
}

func printSummary(r *collector.Report) {
	fmt.Println()
	if r.Archive.Path != "" {
		fmt.Printf("📦 Archive: %s\n", r.Archive.Path)
		fmt.Printf("   Size: %s\n", archive.FormatSize(r.Archive.Size))
		if r.Archive.Class == archive.SizeOversize {
			fmt.Println("⚠️  The archive is larger than most support mail systems accept.")
			fmt.Println("   Ask support for a file share link to upload it.")
		}
	}
	if !r.Archive.Removed {
		fmt.Printf("📁 Collected files: %s\n", r.OutputDir)
	}

	failed := r.Failed()
	fmt.Printf("✅ %d of %d steps completed, %d warnings\n", len(r.Steps)-len(failed), len(r.Steps), r.Warnings)
	for _, s := range failed {
		fmt.Printf("   ❌ %s: %v\n", s.Name, s.Err)
	}
	if r.Warnings > 0 {
		fmt.Printf("   See %s in the archive for details.\n", collector.FileRunLog)
	}
}

func runCheck(ctx context.Context) error {
	restore := logging.SetDefault(logging.Options{Console: os.Stderr, Level: logLevel})
	defer restore()

	if err := opts.ValidateTarget(); err != nil {
		return err
	}
	if opts.Kubeconfig != "" {
		os.Setenv("KUBECONFIG", opts.Kubeconfig)
	}

	fmt.Println("🧪 Checking environment for support dump collection...")
	fmt.Println()
	fmt.Println("🌐 Testing cluster connectivity...")
	client, err := kubecli.Detect(ctx, executor.New(), opts.Namespace, kubecli.Backend(opts.Backend))
	if err != nil {
		fmt.Println("  ❌ FAILED")
		return err
	}
	fmt.Printf("  ✅ Connected using %s\n", client.Backend())

	report := collector.Preflight(ctx, client, func() (kubecli.ContextInfo, error) {
		return kubecli.CurrentContext(opts.Kubeconfig)
	})

	fmt.Println("\n📋 Kubeconfig context...")
	if report.ContextErr != nil {
		fmt.Printf("  ⚠️  Unavailable: %v\n", report.ContextErr)
	} else {
		fmt.Printf("  Context:   %s\n", report.Context.Context)
		fmt.Printf("  Cluster:   %s (%s)\n", report.Context.Cluster, report.Context.Server)
		fmt.Printf("  User:      %s\n", report.Context.User)
	}

	fmt.Printf("\n🔍 Discovering pods in namespace %s...\n", report.Namespace)
	for _, c := range report.Chains {
		if c.Err != nil {
			fmt.Printf("  ⚠️  %s: none found\n", c.Purpose)
			continue
		}
		fmt.Printf("  ✅ %s: %d pods (%s labels)\n", c.Purpose, len(c.Pods), c.Generation)
	}

	if !report.Ready() {
		fmt.Println("\n⚠️  No pods were found. Check the namespace; customized operator labels are not detected.")
		return nil
	}
	fmt.Println("\n🎉 Environment is ready for collection.")
	fmt.Printf("\nRun 'supportdump collect -n %s -o <dir>' to collect a support dump.\n", report.Namespace)
	return nil
}

func addClusterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&opts.Namespace, "namespace", "n", "", "Kubernetes namespace to collect from (required)")
	f.StringVar(&opts.Backend, "cli", "", "Cluster CLI to use: kubectl or oc (default: detect)")
	f.StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	cmd.MarkFlagRequired("namespace")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Console log level: debug, info, warn, error (env LOG_LEVEL)")

	addClusterFlags(collectCmd)
	addClusterFlags(checkCmd)

	f := collectCmd.Flags()
	f.StringVarP(&opts.Destination, "output", "o", "", "Directory the dump and archive are written to (required)")
	f.IntVar(&opts.PGLogCount, "pg-logs", opts.PGLogCount, "Number of most recent PostgreSQL logs to copy per database pod")
	f.BoolVar(&opts.DeleteAfterArchive, "delete-after", false, "Delete the collected directory after archiving")
	f.DurationVar(&opts.ExecTimeout, "exec-timeout", opts.ExecTimeout, "Time limit for each command run inside a container")
	f.StringArrayVar(&opts.ExtraResources, "resource", nil, "Additional resource kind to dump (repeatable)")
	collectCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

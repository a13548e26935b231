// Command glesutil runs a script with the Glesutil factory installed.
//
//	glesutil [-config file] [-driver glfw|headless] [flags] script.js [args...]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/buke/glesutil-go"
	"github.com/buke/glesutil-go/internal/config"
	"github.com/buke/glesutil-go/internal/realpath"
	"github.com/buke/glesutil-go/native"
	"github.com/buke/glesutil-go/native/glfwdriver"
	"github.com/buke/glesutil-go/native/headless"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

func init() {
	// GLFW calls, and therefore the script engine, must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(stderr, "glesutil: %v\n", err)
		return 2
	}
	if cfg.Script == "" {
		fmt.Fprintln(stderr, "usage: glesutil [flags] script.js [args...]")
		return 2
	}
	logger, err := cfg.Logger(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "glesutil: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runScript(ctx, cfg, logger); err != nil {
		logger.Error("glesutil: script failed", "script", cfg.Script, "err", err)
		return 1
	}
	return 0
}

func newDriver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (native.Driver, func()) {
	if cfg.Runtime.Driver == "headless" {
		return headless.New(headless.Options{
			Frames:    cfg.Headless.Frames,
			Delta:     cfg.Headless.Delta.Duration(),
			MaxWidth:  cfg.Headless.Width,
			MaxHeight: cfg.Headless.Height,
		}), func() {}
	}
	return glfwdriver.New(ctx, logger), glfwdriver.Terminate
}

func runScript(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	src, err := os.ReadFile(cfg.Script)
	if err != nil {
		return err
	}

	resolve := glesutil.PathResolver(realpath.Resolve)
	if cfg.Assets.Root != "" {
		resolve = realpath.Under(cfg.Assets.Root)
	}
	policy := glesutil.ArgumentsLenient
	if cfg.Runtime.StrictArguments {
		policy = glesutil.ArgumentsStrict
	}
	driver, terminate := newDriver(ctx, cfg, logger)
	defer terminate()

	r := glesutil.NewRuntime(goja.New(),
		glesutil.WithDriver(driver),
		glesutil.WithPathResolver(resolve),
		glesutil.WithLogger(logger),
		glesutil.WithArgumentPolicy(policy),
	)
	vm := r.VM()

	registry := require.NewRegistry()
	if err := r.Register(registry, glesutil.DefaultModuleName); err != nil {
		return err
	}
	registry.Enable(vm)
	console.Enable(vm)
	if err := r.Install(glesutil.DefaultGlobalName); err != nil {
		return err
	}
	argv := append([]string{cfg.Script}, cfg.Args...)
	if err := vm.Set("argv", argv); err != nil {
		return err
	}

	interrupted := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer interrupted()

	start := time.Now()
	logger.Info("glesutil: running script", "script", cfg.Script, "driver", cfg.Runtime.Driver)
	_, runErr := vm.RunScript(cfg.Script, string(src))

	r.RunGC()
	r.Close()
	stats := r.Stats()
	logger.Info("glesutil: script finished",
		"elapsed", time.Since(start),
		"contexts", stats.ContextsCreated,
		"images", stats.ImagesCreated,
		"dispatch_errors", stats.DispatchErrors,
		"live", r.Live())

	var interrupt *goja.InterruptedError
	if errors.As(runErr, &interrupt) {
		logger.Info("glesutil: interrupted")
		return nil
	}
	return runErr
}

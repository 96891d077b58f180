// Package main provides the scaneats binary: the websocket/HTTP server and
// a one-shot scan command over the same pipeline.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	// Register OCR engines via init()
	_ "github.com/franckalain/scaneats/internal/ocr/tesseract"
	_ "github.com/franckalain/scaneats/internal/ocr/vertex"

	"github.com/franckalain/scaneats/internal/models"
	"github.com/franckalain/scaneats/internal/ocr"
	"github.com/franckalain/scaneats/internal/pipeline"
	"github.com/franckalain/scaneats/internal/server"
)

const (
	Version = "0.3.0"
	appName = "scaneats"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd(nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

// rootCmd builds the command tree. A non-nil engine replaces the configured
// OCR engine for scans.
func rootCmd(engine ocr.Engine) *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Nutrition label scanner",
		Long: `ScanEats reads nutrition labels from photos and turns them into
per-user nutrition entries with an energy expenditure estimate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(&flags, engine), scanCmd(&flags, engine), userCmd(&flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})
	return cmd
}

func serveCmd(flags *globalFlags, engine ocr.Engine) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if port != "" {
				cfg.Server.Port = port
			}
			logger := newLogger(cmd.ErrOrStderr(), flags.logLevel, cfg.Server.Debug)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger, engine)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a.pipeline, a.db, server.Options{
				StaticDir: cfg.Server.StaticDir,
				Gatherer:  a.registry,
				Logger:    logger,
			})
			return srv.Start(ctx, cfg.Server.Port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Override server.port")
	return cmd
}

// scanCmd runs one image through the pipeline.
func scanCmd(flags *globalFlags, engine ocr.Engine) *cobra.Command {
	var userID, foodName string
	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Scan one label image and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cmd.ErrOrStderr(), flags.logLevel, cfg.Server.Debug)

			data, err := readImage(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger, engine)
			if err != nil {
				return err
			}
			defer a.Close()

			res, runErr := a.pipeline.Run(cmd.Context(), pipeline.Request{
				UserID:   userID,
				FoodName: foodName,
				Image:    models.RawImage{Name: filepath.Base(args[0]), Data: data},
			})
			if err := printJSON(cmd.OutOrStdout(), pipeline.NewResponse(res, runErr)); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("scan failed: %s", pipeline.KindOf(runErr))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	cmd.Flags().StringVar(&foodName, "food-name", "", "Food name stored with the entry")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func userCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user profiles",
	}

	var (
		id, name, gender    string
		age, weight, height float64
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create or update a user profile and print its ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cmd.ErrOrStderr(), flags.logLevel, cfg.Server.Debug)

			g, err := models.ParseGender(gender)
			if err != nil {
				return err
			}
			if id != "" {
				if _, err := uuid.Parse(id); err != nil {
					return fmt.Errorf("invalid user ID %q: %w", id, err)
				}
			}

			a, err := openDB(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			p := models.UserProfile{UserID: id, Name: name, Age: age, WeightKg: weight, HeightCm: height, Gender: g}
			if err := a.db.UpsertUser(cmd.Context(), &p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.UserID)
			return nil
		},
	}
	add.Flags().StringVar(&id, "id", "", "User ID (generated when empty)")
	add.Flags().StringVar(&name, "name", "", "Display name")
	add.Flags().Float64Var(&age, "age", 0, "Age in years")
	add.Flags().Float64Var(&weight, "weight", 0, "Weight in kg")
	add.Flags().Float64Var(&height, "height", 0, "Height in cm")
	add.Flags().StringVar(&gender, "gender", "", "male, female or other")
	for _, f := range []string{"age", "weight", "height", "gender"} {
		_ = add.MarkFlagRequired(f)
	}

	cmd.AddCommand(add)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

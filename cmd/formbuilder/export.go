package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adiatmad/xlsformbuilderku/internal/export"
	"github.com/adiatmad/xlsformbuilderku/internal/formfile"
	appI18n "github.com/adiatmad/xlsformbuilderku/internal/i18n"
	"github.com/adiatmad/xlsformbuilderku/internal/model"
	"github.com/adiatmad/xlsformbuilderku/internal/session"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <definition|glob>...",
		Short: "Write an XLSForm workbook for each form definition",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.StringP("out-dir", "o", ".", "Directory for the exported files")
	f.StringP("format", "f", "xlsx", "Output format (xlsx, json)")
	f.Bool("strict", false, "Fail when the export produces warnings")
	addCommonFlags(cmd)
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <definition|glob>...",
		Short: "Check form definitions and report export warnings",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate,
	}
	f := cmd.Flags()
	f.Bool("strict", false, "Treat warnings as failures")
	addCommonFlags(cmd)
	return cmd
}

// buildFile loads a definition into a fresh session and assembles its export.
func buildFile(path string) (*export.Bundle, model.Settings, error) {
	def, err := formfile.Load(path)
	if err != nil {
		return nil, model.Settings{}, err
	}
	s := session.New(filepath.Base(path), session.Options{})
	if err := def.Apply(s); err != nil {
		return nil, model.Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	b, err := s.Export()
	if err != nil {
		return nil, model.Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, s.Settings(), nil
}

// describe localizes builder errors and passes file and parse errors through.
func describe(ctx context.Context, err error) string {
	var (
		ve *model.ValidationError
		ie *model.IndexError
		ee *model.ExportError
	)
	if errors.As(err, &ve) || errors.As(err, &ie) || errors.As(err, &ee) {
		return appI18n.Error(ctx, err)
	}
	return err.Error()
}

func printWarnings(ctx context.Context, w io.Writer, path string, b *export.Bundle) {
	if len(b.Warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "%s: %s\n", path, appI18n.Tp(ctx, "WarningsFound", len(b.Warnings)))
	for _, warn := range b.Warnings {
		fmt.Fprintf(w, "  [%s] %s\n", warn.Kind, warn.Message)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	format := strings.ToLower(v.GetString("format"))
	if format != "xlsx" && format != "json" {
		return fmt.Errorf("unsupported format %q (want xlsx or json)", format)
	}
	outDir := v.GetString("out-dir")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	paths, err := formfile.Expand(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var failed int
	for _, path := range paths {
		b, settings, err := buildFile(path)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), describe(ctx, err))
			slog.Debug("export failed", "path", path, "error", err)
			failed++
			continue
		}
		printWarnings(ctx, cmd.ErrOrStderr(), path, b)
		if v.GetBool("strict") && len(b.Warnings) > 0 {
			failed++
			continue
		}

		target := filepath.Join(outDir, settings.FormID+"."+format)
		if err := writeBundle(target, format, b); err != nil {
			return err
		}
		fmt.Fprintln(out, appI18n.Td(ctx, "ExportWritten", map[string]any{"Path": target}))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d definitions not exported", failed, len(paths))
	}
	return nil
}

func writeBundle(path, format string, b *export.Bundle) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if format == "json" {
		return export.WriteJSON(f, b)
	}
	return export.WriteXLSX(f, b)
}

func runValidate(cmd *cobra.Command, args []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	paths, err := formfile.Expand(args)
	if err != nil {
		return err
	}

	var errs []error
	for _, path := range paths {
		b, _, err := buildFile(path)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), describe(ctx, err))
			errs = append(errs, err)
			continue
		}
		printWarnings(ctx, cmd.OutOrStdout(), path, b)
		if v.GetBool("strict") && len(b.Warnings) > 0 {
			errs = append(errs, fmt.Errorf("%s: %s", path, appI18n.Tp(ctx, "WarningsFound", len(b.Warnings))))
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), appI18n.Td(ctx, "FormValid", map[string]any{"Path": path}))
	}
	return errors.Join(errs...)
}

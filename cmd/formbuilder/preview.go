package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/adiatmad/xlsformbuilderku/internal/formfile"
	appI18n "github.com/adiatmad/xlsformbuilderku/internal/i18n"
	"github.com/adiatmad/xlsformbuilderku/internal/model"
	"github.com/adiatmad/xlsformbuilderku/internal/session"
	"github.com/adiatmad/xlsformbuilderku/internal/simulate"
)

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <definition>",
		Short: "Fill a form once and show which questions are asked",
		Args:  cobra.ExactArgs(1),
		RunE:  runPreview,
	}
	f := cmd.Flags()
	f.String("answers", "", "YAML or JSON file of answers keyed by question name (prompts on stdin when empty)")
	addCommonFlags(cmd)
	return cmd
}

func runPreview(cmd *cobra.Command, args []string) error {
	v, ctx, err := setup(cmd)
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	def, err := formfile.Load(args[0])
	if err != nil {
		return err
	}
	s := session.New(args[0], session.Options{})
	if err := def.Apply(s); err != nil {
		return fmt.Errorf("%s: %s", args[0], describe(ctx, err))
	}

	var res *simulate.Result
	if path := v.GetString("answers"); path != "" {
		answers, err := loadAnswers(path)
		if err != nil {
			return err
		}
		res, err = s.Preview(answers)
		if err != nil {
			return fmt.Errorf("%s", describe(ctx, err))
		}
	} else {
		res, err = interactive(ctx, s.NewSimulation(), cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}

	printResult(ctx, cmd.OutOrStdout(), res)
	return nil
}

// loadAnswers reads a flat name → value mapping. YAML is a superset of JSON,
// so one decoder serves both.
func loadAnswers(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	answers := make(map[string]string)
	if err := yaml.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("parse answers %s: %w", path, err)
	}
	return answers, nil
}

// interactive walks the simulation, prompting on out and reading one line per
// visible question from in. Invalid answers are reported and asked again.
func interactive(ctx context.Context, sim *simulate.Simulation, in io.Reader, out io.Writer) (*simulate.Result, error) {
	scanner := bufio.NewScanner(in)
	for i := 0; i < sim.Len(); i++ {
		visible, err := sim.Present(i)
		if err != nil {
			return nil, err
		}
		q, _ := sim.Question(i)
		if !visible {
			continue
		}
		if q.Type == model.TypeNote {
			fmt.Fprintln(out, q.Label)
			continue
		}
		for {
			fmt.Fprint(out, appI18n.Td(ctx, "PromptAnswer", map[string]any{"Label": q.Label, "Type": q.Type}))
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return nil, fmt.Errorf("read answer: %w", err)
				}
				return nil, fmt.Errorf("input ended before %s was answered", q.Name)
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" && !q.Required {
				break
			}
			if err := sim.Record(q.Name, line); err != nil {
				fmt.Fprintln(out, describe(ctx, err))
				continue
			}
			break
		}
	}
	return sim.Result(), nil
}

func printResult(ctx context.Context, w io.Writer, res *simulate.Result) {
	for _, st := range res.Steps {
		status := appI18n.T(ctx, "Hidden")
		if st.Visible {
			status = appI18n.T(ctx, "Visible")
		}
		answer := ""
		if v, ok := res.Answers[st.Name]; ok {
			answer = " = " + v
		}
		fmt.Fprintf(w, "%3d  %-20s %s%s\n", st.Index+1, st.Name, status, answer)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn.Error())
	}
	fmt.Fprintln(w, res.InstanceID)
}

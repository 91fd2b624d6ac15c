package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/export"
	"github.com/nerrad567/rigdash/internal/infrastructure/config"
	"github.com/nerrad567/rigdash/internal/pintest"
	"github.com/nerrad567/rigdash/internal/rig"
)

// newExportCmd downloads the whole history of one or more devices without
// starting the server.
func newExportCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export kind/id...",
		Short: "Download device history as TSV or XLSX",
		Example: `  rigdash export sensor/0 sensor/1
  rigdash export -f xlsx -o run.xlsx sensor/0 actuator/2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			refs := make([]device.Ref, 0, len(args))
			for _, arg := range args {
				ref, err := device.ParseRef(arg)
				if err != nil {
					return err
				}
				refs = append(refs, ref)
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			client, err := rig.New(cfg.Rig)
			if err != nil {
				return fmt.Errorf("creating rig client: %w", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer file.Close()
				w = file
			}
			if err := export.New(client).Export(cmd.Context(), w, f, refs); err != nil {
				return fmt.Errorf("exporting: %w", err)
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d device(s) to %s\n", len(refs), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatTSV), "output format: tsv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// newPinsCmd exercises individual pins from the shell. Each invocation
// exports the pin, acts on it and unexports it again unless --keep is set.
func newPinsCmd(load func() (*config.Config, error)) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "pins",
		Short: "Test GPIO, PWM and ADC pins",
	}
	cmd.PersistentFlags().BoolVar(&keep, "keep", false, "leave the pin exported afterwards")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the pins available for testing",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gpio %v\n", pintest.GPIOPins)
			fmt.Fprintf(out, "pwm  %v\n", pintest.PWMChannels)
			fmt.Fprintf(out, "adc  %v\n", pintest.ADCChannels)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "read gpi|adc num",
		Short:   "Read an input pin once",
		Example: "  rigdash pins read adc 3",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePin(args[0], args[1])
			if err != nil {
				return err
			}
			return withPin(cmd.Context(), load, p, keep, func(t *pintest.Tester) error {
				reading, err := t.Read(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %d\n", p, reading.Value)
				return nil
			})
		},
	})

	var pwm pintest.PWMSettings
	set := &cobra.Command{
		Use:   "set gpo|pwm num on|off",
		Short: "Drive an output pin",
		Example: `  rigdash pins set gpo 4 on
  rigdash pins set pwm 2 on --freq 1000 --duty 0.25 --keep`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePin(args[0], args[1])
			if err != nil {
				return err
			}
			on, err := parseOnOff(args[2])
			if err != nil {
				return err
			}
			return withPin(cmd.Context(), load, p, keep, func(t *pintest.Tester) error {
				var reply string
				switch {
				case p.Type == rig.PinGPO:
					reply, err = t.WriteGPIO(cmd.Context(), p.Num, on)
				case p.Type == rig.PinPWM && on:
					reply, err = t.SetPWM(cmd.Context(), p.Num, pwm)
				case p.Type == rig.PinPWM:
					reply, err = t.StopPWM(cmd.Context(), p.Num)
				default:
					return fmt.Errorf("%w: %s is not an output", pintest.ErrWrongType, p)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply)
				return nil
			})
		},
	}
	set.Flags().Float64Var(&pwm.Freq, "freq", 1000, "PWM frequency in Hz")
	set.Flags().Float64Var(&pwm.Duty, "duty", 0.5, "PWM duty cycle between 0 and 1")
	set.Flags().BoolVar(&pwm.Polarity, "pol", false, "invert PWM polarity")
	cmd.AddCommand(set)

	return cmd
}

// withPin exports p, runs fn and unexports p unless keep is set.
func withPin(ctx context.Context, load func() (*config.Config, error), p pintest.Pin, keep bool, fn func(*pintest.Tester) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	client, err := rig.New(cfg.Rig)
	if err != nil {
		return fmt.Errorf("creating rig client: %w", err)
	}
	tester := pintest.New(client, cfg.PinTest)
	defer tester.Close()

	if _, err := tester.Export(ctx, p); err != nil {
		return err
	}
	runErr := fn(tester)
	if !keep {
		if _, err := tester.Unexport(ctx, p); err != nil && runErr == nil {
			return err
		}
	}
	return runErr
}

func parsePin(typ, num string) (pintest.Pin, error) {
	n, err := strconv.Atoi(num)
	if err != nil {
		return pintest.Pin{}, fmt.Errorf("%w: pin number %q", pintest.ErrInvalidInput, num)
	}
	p := pintest.Pin{Type: rig.PinType(typ), Num: n}
	if err := p.Validate(); err != nil {
		return pintest.Pin{}, err
	}
	return p, nil
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "1", "high":
		return true, nil
	case "off", "0", "low":
		return false, nil
	}
	return false, fmt.Errorf("%w: want on or off, got %q", pintest.ErrInvalidInput, s)
}

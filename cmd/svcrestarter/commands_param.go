package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	restarter "github.com/axondata/go-svcrestarter"
)

func buildParamCmd(a *app) *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "param",
		Short: "Inspect and edit the Parameters key",
	}
	cmd.PersistentFlags().StringVarP(&service, "service", "s", "", "supervisor instance (defaults to the executable name)")

	keyPath := func() string {
		if service == "" {
			return restarter.ParametersKeyPath(defaultServiceName())
		}
		return restarter.ParametersKeyPath(service)
	}

	cmd.AddCommand(
		buildParamGetCmd(a, keyPath),
		buildParamSetCmd(a, keyPath),
		buildParamDeleteCmd(a, keyPath),
		buildParamListTypesCmd(),
	)
	return cmd
}

func buildParamGetCmd(a *app, keyPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get [NAME...]",
		Short: "Print values, or every value when no name is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.settings.OpenStore()
			if err != nil {
				return err
			}
			k, err := store.OpenKey(keyPath(), restarter.KeyRead)
			if err != nil {
				return err
			}
			defer func() { _ = k.Close() }()

			names := args
			if len(names) == 0 {
				if names, err = k.ValueNames(); err != nil {
					return err
				}
			}
			for _, name := range names {
				v, err := k.ReadValue(name)
				if err != nil {
					return err
				}
				printValue(cmd.OutOrStdout(), name, v)
			}
			return nil
		},
	}
}

func printValue(w io.Writer, name string, v restarter.Value) {
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, v.Type(), restarter.FormatValue(v))
}

func buildParamSetCmd(a *app, keyPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME TYPE [VALUE...]",
		Short: "Write a value",
		Long: `Write a value of the given type. Text types take one VALUE, integers take one
number in any Go base notation, opaque types take one hex string and
multi_sz takes one VALUE per element.`,
		Example: `  svcrestarter param set ServicesExpectedRunning multi_sz Spooler W32Time
  svcrestarter param set SleepDurationMilliseconds dword 60000`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			t, err := restarter.ParseValueType(args[1])
			if err != nil {
				return err
			}
			v, err := restarter.ParseValue(t, args[2:])
			if err != nil {
				return &restarter.ValueError{Key: keyPath(), Name: name, Type: t, Err: err}
			}

			store, err := a.settings.OpenStore()
			if err != nil {
				return err
			}
			k, err := store.OpenKey(keyPath(), restarter.KeyWrite)
			if err != nil {
				return err
			}
			defer func() { _ = k.Close() }()

			if err := k.WriteValue(name, v); err != nil {
				return err
			}
			a.logger.Debug("value written", "key", keyPath(), "value", name, "type", t)
			return nil
		},
	}
}

func buildParamDeleteCmd(a *app, keyPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME...",
		Short: "Delete values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := a.settings.OpenStore()
			if err != nil {
				return err
			}
			k, err := store.OpenKey(keyPath(), restarter.KeyWrite)
			if err != nil {
				return err
			}
			defer func() { _ = k.Close() }()

			var errs restarter.MultiError
			for _, name := range args {
				if err := k.DeleteValue(name); err != nil {
					a.logger.Error("delete failed", "key", keyPath(), "value", name, "error", err)
					errs.Add(err)
				}
			}
			return errs.Err()
		},
	}
}

func buildParamListTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-types",
		Short: "List the value type names accepted by set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, t := range restarter.ValueTypes() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", uint32(t), t)
			}
			return nil
		},
	}
}

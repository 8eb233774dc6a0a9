package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/config"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/app"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/service"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"

	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	var (
		gatewayName string
		reference   string
		customerID  string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Confirm a payment and create its order if missing",
		Long: `Runs the same pipeline as the checkout return page for one payment
reference. Use it for orders reported as pending manual reconciliation.
Running it for an already reconciled payment returns the existing order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseGatewayKind(gatewayName)
			if err != nil {
				return err
			}
			if reference == "" {
				return errors.New("--ref is required")
			}

			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.FrontDoor.Run(cmd.Context(), service.Request{
				Gateway:    kind,
				Params:     map[string]string{"reference": reference},
				CustomerID: customerID,
			})
			if err := printResult(cmd.OutOrStdout(), res, asJSON); err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("reconciliation failed: %s", res.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&gatewayName, "gateway", "g", "", "Gateway kind ("+gatewayList()+")")
	cmd.Flags().StringVarP(&reference, "ref", "r", "", "Provider reference")
	cmd.Flags().StringVar(&customerID, "customer", "", "Customer id to record on a newly created order")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("gateway")

	return cmd
}

func orderCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "order [number]",
		Short: "Show a stored order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			order, err := a.Store.GetOrderByNumber(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOrder(cmd.OutOrStdout(), order, asJSON)
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func setup(ctx context.Context) (*app.App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load()
	cfg.Database.Migrate = false
	if err := util.InitLogger("production"); err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg)
}

func gatewayList() string {
	names := make([]string, 0, len(models.GatewayKinds))
	for _, k := range models.GatewayKinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

func printResult(w io.Writer, res *service.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}

	if !res.OK {
		fmt.Fprintf(w, "FAILED  %s\n", res.Reason)
		fmt.Fprintf(w, "  %s\n", res.Error)
		return nil
	}

	outcome := "existing"
	if res.Created {
		outcome = "created"
	}
	fmt.Fprintf(w, "OK  %s (%s)\n", res.OrderNumber, outcome)
	fmt.Fprintf(w, "  Status:  %s\n", res.OrderStatus)
	if res.Totals != nil {
		fmt.Fprintf(w, "  Total:   %s\n", res.Totals.Display)
	}
	for _, it := range res.LineItems {
		fmt.Fprintf(w, "  - %d x %s @ %s\n", it.Quantity, it.Name, it.Display)
	}
	return nil
}

func printOrder(w io.Writer, o *models.Order, asJSON bool) error {
	if asJSON {
		return writeJSON(w, o)
	}

	fmt.Fprintf(w, "%s  %s\n", o.OrderNumber, o.Status)
	fmt.Fprintf(w, "  Payment:  %s %s\n", o.GatewayKind, o.ProviderReference)
	fmt.Fprintf(w, "  Customer: %s %s\n", o.CustomerID, o.CustomerEmail)
	fmt.Fprintf(w, "  Total:    %s\n", models.FormatMinor(o.TotalMinor, o.Currency))
	for _, it := range service.LineItemViews(o) {
		fmt.Fprintf(w, "  - %d x %s @ %s\n", it.Quantity, it.Name, it.Display)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

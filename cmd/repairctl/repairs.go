package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/BearBump/RepairBox/internal/services/lifecycle"
	"github.com/BearBump/RepairBox/internal/services/timeline"
	"github.com/BearBump/RepairBox/internal/trackingcode"
	"github.com/spf13/cobra"
)

func newIntakeCmd(opts *rootOpts) *cobra.Command {
	var in lifecycle.IntakeInput
	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Register a vehicle and print its tracking code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := svc.CreateIntake(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", snap.Repair.ID, snap.Repair.TrackingCode)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.CustomerName, "name", "", "customer name")
	f.StringVar(&in.CustomerPhone, "phone", "", "customer phone")
	f.StringVar(&in.CustomerEmail, "email", "", "customer email")
	f.StringVar(&in.Plate, "plate", "", "vehicle plate")
	f.StringVar(&in.Brand, "brand", "", "vehicle brand")
	f.StringVar(&in.Model, "model", "", "vehicle model")
	f.StringVar(&in.Kind, "kind", "MECHANICAL", "ACCIDENT, COSMETIC or MECHANICAL")
	f.StringVar(&in.Description, "description", "", "damage description")
	f.StringVar(&in.Actor, "actor", "repairctl", "who registers the vehicle")
	return cmd
}

func newListCmd(opts *rootOpts) *cobra.Command {
	var filter lifecycle.ListFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List repairs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			items, err := svc.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCODE\tSTATUS\tPLATE\tCUSTOMER")
			for _, it := range items {
				plate, customer := "", ""
				if it.Vehicle != nil {
					plate = it.Vehicle.Plate
				}
				if it.Customer != nil {
					customer = it.Customer.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.Repair.ID, it.Repair.TrackingCode, it.Repair.Status, plate, customer)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Status, "status", "", "only this status")
	cmd.Flags().StringVarP(&filter.Search, "query", "q", "", "search code, plate, name or phone")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "page offset")
	return cmd
}

func newTimelineCmd(opts *rootOpts) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "timeline REPAIR_ID|TRACKING_CODE",
		Short: "Print the reconstructed timeline of a repair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			var steps []timeline.Step
			if code := trackingcode.Normalize(args[0]); svc.TrackingCodes().IsValid(code) {
				v, err := svc.PublicTracking(cmd.Context(), code)
				if err != nil {
					return err
				}
				steps = v.Timeline
			} else {
				tl, err := svc.Timeline(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				steps = tl.Steps
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(steps)
			}
			return printSteps(cmd.OutOrStdout(), steps)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printSteps(w io.Writer, steps []timeline.Step) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, st := range steps {
		mark := " "
		switch {
		case st.Current:
			mark = ">"
		case st.Completed:
			mark = "x"
		}
		at := ""
		if st.OccurredAt != nil {
			at = st.OccurredAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "[%s]\t%s\t%s\t%s\n", mark, st.Status, st.Label, at)
	}
	return tw.Flush()
}

func newTransitionCmd(opts *rootOpts) *cobra.Command {
	var req lifecycle.TransitionRequest
	cmd := &cobra.Command{
		Use:   "transition REPAIR_ID STATUS",
		Short: "Move a repair forward",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			req.RepairID, req.Status = args[0], args[1]
			res, err := svc.Transition(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (v%d)\n", res.Outcome, res.Previous, res.Repair.Status, res.Repair.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Note, "note", "", "note stored with the entry")
	cmd.Flags().StringVar(&req.Actor, "actor", "repairctl", "who makes the change")
	cmd.Flags().StringVar(&req.ExpectedStatus, "expected-status", "", "fail unless the repair is in this status")
	return cmd
}

func newCorrectCmd(opts *rootOpts) *cobra.Command {
	var req lifecycle.CorrectionRequest
	cmd := &cobra.Command{
		Use:   "correct REPAIR_ID STATUS",
		Short: "Administrative correction to any status (note required)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			req.RepairID, req.Status = args[0], args[1]
			res, err := svc.Correct(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (v%d)\n", res.Outcome, res.Previous, res.Repair.Status, res.Repair.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Note, "note", "", "reason for the correction")
	cmd.Flags().StringVar(&req.Actor, "actor", "repairctl", "who makes the change")
	cmd.Flags().StringVar(&req.ExpectedStatus, "expected-status", "", "fail unless the repair is in this status")
	return cmd
}

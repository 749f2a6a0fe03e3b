package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	seedTickets int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo data for development",
}

var seedDemoCmd = &cobra.Command{
	Use:          "demo",
	Short:        "Seed demo users, locations, customers and tickets",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedTickets < 0 {
			return fmt.Errorf("--tickets must be >= 0")
		}

		// Users (safe to upsert repeatedly).
		if err := postOK("/api/v1/seed/users", []map[string]any{
			{"email": "alice@acme.test", "full_name": "Alice Moreau", "role": "supervisor", "enabled": true},
			{"email": "bob@acme.test", "full_name": "Bob Tanaka", "role": "agent", "enabled": true},
			{"email": "carol@acme.test", "full_name": "Carol Singh", "role": "agent", "enabled": true},
			{"email": "pilot@acme.test", "full_name": "Pat Lindqvist", "role": "pilot_tech", "enabled": true},
			{"email": "helpdesk@local.test", "full_name": "Helpdesk", "role": "agent", "enabled": true},
		}); err != nil {
			return err
		}

		if err := postOK("/api/v1/seed/locations", []map[string]any{
			{"name": "LOC-0001", "display_name": "North Plant", "parent": ""},
			{"name": "LOC-0002", "display_name": "South Plant", "parent": ""},
			{"name": "LOC-0003", "display_name": "North Plant / Line 2", "parent": "LOC-0001"},
		}); err != nil {
			return err
		}

		if err := postOK("/api/v1/seed/customers", []map[string]any{
			{
				"name":     "Acme Industrial",
				"email":    "ops@acme-industrial.test",
				"contacts": []string{"jdoe@acme-industrial.test", "maintenance@acme-industrial.test"},
			},
			{
				"name":     "Borealis Foods",
				"email":    "it@borealis-foods.test",
				"contacts": []string{"plant@borealis-foods.test"},
			},
		}); err != nil {
			return err
		}

		subjects := []string{
			"Conveyor stopped on line 2",
			"SITE: North Plant - panel fault",
			"Packaging unit noise",
			"Label printer offline",
		}
		bodies := []string{
			"The conveyor halted this morning.\nSITE: North Plant\nASSET: CNV-014",
			"Panel throws error E-32.\nASSET: PNL-003",
			"Intermittent noise from the packaging unit.",
			"Printer does not respond to jobs.\nSITE: LOC-0002",
		}
		senders := []string{
			"jdoe@acme-industrial.test",
			"plant@borealis-foods.test",
			"maintenance@acme-industrial.test",
			"unknown@elsewhere.test",
		}
		for i := 0; i < seedTickets; i++ {
			if err := postOK("/api/v1/tickets", map[string]any{
				"subject":     subjects[i%len(subjects)],
				"description": bodies[i%len(bodies)],
				"sender":      senders[i%len(senders)],
				"group":       "Field Service",
			}); err != nil {
				return err
			}
		}

		fmt.Printf("Seeded demo data (%d tickets)\n", seedTickets)
		return nil
	},
}

func init() {
	seedDemoCmd.Flags().IntVar(&seedTickets, "tickets", 8, "number of demo tickets to create")
	addClientFlags(seedDemoCmd)
	seedCmd.AddCommand(seedDemoCmd)
}

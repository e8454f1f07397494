package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/leadsite/internal/model"
	"github.com/jmehdipour/leadsite/internal/repository"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Store demo leads in the configured lead store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.store == nil {
			return fmt.Errorf("no lead store configured (store.backend=%q)", cfg.Store.Backend)
		}

		log.Println(">> Seeding demo leads...")

		n, err := seedLeads(cmd.Context(), a.store)
		if err != nil {
			return err
		}

		log.Printf(">> Seed completed ✅ (%d stored)", n)
		return nil
	},
}

// demoLeads are deterministic sample submissions, one per demo business type.
var demoLeads = []model.Lead{
	{Name: "Sarah Chen", Email: "sarah.chen@example.com", Phone: "+14155550101", Company: "Bright Smile Dental", Service: "Appointment booking", BusinessType: "dental"},
	{Name: "Marcus Webb", Email: "marcus@example.com", Phone: "+442071230102", Company: "Webb Realty", Service: "Lead follow-up", BusinessType: "real-estate"},
	{Name: "Priya Nair", Email: "priya.nair@example.com", Phone: "+61290000103", Company: "Nair Legal", Service: "Consultation intake", BusinessType: "law"},
	{Name: "Tom O'Brien", Email: "tom@example.com", Phone: "+353100000104", Company: "O'Brien Fitness", Service: "Trial sign-ups", BusinessType: "fitness"},
	{Name: "Lucia Romero", Email: "lucia@example.com", Phone: "+34910000105", Company: "Casa Lucia", Service: "Reservations", BusinessType: "restaurant"},
}

// seedLeads is idempotent within the duplicate window: repeats are reported
// as duplicates and skipped.
func seedLeads(ctx context.Context, store repository.LeadStore) (int, error) {
	stored := 0
	for _, l := range demoLeads {
		lead := l
		lead.Status = model.StatusNotContacted
		res, err := store.Save(ctx, &lead)
		if err != nil {
			return stored, fmt.Errorf("store lead %q: %w (%s)", lead.Email, err, repository.StorageHint(err))
		}
		if res.Duplicate {
			log.Printf("   skip %s (duplicate)", lead.Email)
			continue
		}
		stored++
	}
	return stored, nil
}

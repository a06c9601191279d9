package meetings

import (
	"testing"

	"leadify-meeting-orchestrator/internal/types"
)

func defaultTable() *VenueTable {
	return NewVenueTable([]Rule{
		{Keywords: []string{"venue-b", "parking"}, Variant: types.KindInvitationBParking},
		{Keywords: []string{"venue-b"}, Variant: types.KindInvitationB},
		{Keywords: []string{"venue-a"}, Variant: types.KindInvitationA},
	}, []string{"virtual", "teams", "zoom", "online"})
}

func TestVenueVariant(t *testing.T) {
	table := defaultTable()

	tests := []struct {
		location string
		want     types.EventKind
	}{
		{"Venue-B, level -2 parking", types.KindInvitationBParking},
		{"venue-b reception", types.KindInvitationB},
		{"VENUE-A boardroom", types.KindInvitationA},
		{"Client's home", types.KindInvitationDefault},
		{"", types.KindInvitationDefault},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			if got := table.Variant(tt.location); got != tt.want {
				t.Errorf("Variant(%q) = %s, want %s", tt.location, got, tt.want)
			}
		})
	}
}

func TestVenueTableIgnoresEmptyRules(t *testing.T) {
	table := NewVenueTable([]Rule{{Keywords: []string{" "}, Variant: types.KindInvitationA}}, nil)
	if got := table.Variant("anywhere"); got != types.KindInvitationDefault {
		t.Errorf("rule without keywords matched: %s", got)
	}
}

func TestIsVirtual(t *testing.T) {
	table := defaultTable()
	for location, want := range map[string]bool{
		"Microsoft Teams":  true,
		"Zoom call":        true,
		"Online":           true,
		"Venue-A":          false,
		"Virtual (client)": true,
	} {
		if got := table.IsVirtual(location); got != want {
			t.Errorf("IsVirtual(%q) = %v, want %v", location, got, want)
		}
	}
}

func TestRecipientsFor(t *testing.T) {
	lead := types.Lead{Name: "Noa", Email: "noa@example.com", Language: "he"}

	t.Run("explicit recipients win", func(t *testing.T) {
		explicit := []types.Recipient{{Name: "Dana", Email: "dana@example.com"}}
		got := recipientsFor(explicit, lead, []types.Contact{{Name: "Avi", Email: "avi@example.com"}})
		if len(got) != 1 || got[0].Name != "Dana" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("contacts prefer email then chat", func(t *testing.T) {
		got := recipientsFor(nil, lead, []types.Contact{
			{ID: "c1", Name: "Avi", Email: "avi@example.com", Phone: "+972501111111", Language: "en"},
			{ID: "c2", Name: "Yossi", Phone: "+972502222222"},
			{ID: "c3", Name: "Nobody"},
		})
		if len(got) != 3 {
			t.Fatalf("got %d recipients", len(got))
		}
		if got[0].Channel != types.ChannelEmail || got[0].Language != "en" || got[0].ContactID != "c1" {
			t.Errorf("first = %+v", got[0])
		}
		if got[1].Channel != types.ChannelChat || got[1].Language != "he" {
			t.Errorf("second = %+v", got[1])
		}
		if got[2].Channel != "" {
			t.Errorf("third = %+v, want no channel", got[2])
		}
	})

	t.Run("lead without contacts is notified directly", func(t *testing.T) {
		got := recipientsFor(nil, lead, nil)
		if len(got) != 1 || got[0].Email != "noa@example.com" || got[0].Channel != types.ChannelEmail {
			t.Errorf("got %+v", got)
		}
	})
}

package templates

import (
	"strings"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestRender(t *testing.T) {
	values := Values{"client_name": "Dana <Levi>", "meeting_date": "Tuesday, June 10, 2025"}

	tests := []struct {
		name   string
		text   string
		escape bool
		want   string
	}{
		{"plain", "Hi {{client_name}}", false, "Hi Dana <Levi>"},
		{"escaped", "<p>Hi {{client_name}}</p>", true, "<p>Hi Dana &lt;Levi&gt;</p>"},
		{"spaces inside braces", "{{ meeting_date }}", false, "Tuesday, June 10, 2025"},
		{"unknown token renders empty", "[{{nope}}]", false, "[]"},
		{"repeated", "{{client_name}}/{{client_name}}", false, "Dana <Levi>/Dana <Levi>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.text, values, tt.escape); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderEmailAddsMetadata(t *testing.T) {
	tpl := Template{Kind: "reminder", Subject: "Re: {{lead_number}}", Body: "<p>{{client_name}}</p>"}
	out := RenderEmail(tpl, Values{"lead_number": "L1", "client_name": "Noa"}, "m-1")
	if out.Subject != "Re: L1" {
		t.Errorf("Subject = %q", out.Subject)
	}
	if !strings.HasPrefix(out.HTMLBody, "<p>Noa</p>") || !strings.Contains(out.HTMLBody, `<span id="meeting-id">m-1</span>`) {
		t.Errorf("HTMLBody = %q", out.HTMLBody)
	}
}

func TestChatParams(t *testing.T) {
	values := Values{"client_name": "Noa", "meeting_date": "Monday", "meeting_time": "10:00"}

	tests := []struct {
		name   string
		count  *int
		params []string
		want   []string
	}{
		{"exact", intPtr(2), []string{"client_name", "meeting_date"}, []string{"Noa", "Monday"}},
		{"padded", intPtr(4), []string{"client_name", "meeting_time"}, []string{"Noa", "10:00", "", ""}},
		{"truncated", intPtr(1), []string{"client_name", "meeting_date", "meeting_time"}, []string{"Noa"}},
		{"unknown type is empty", intPtr(2), []string{"client_name", "amount"}, []string{"Noa", ""}},
		{"zero", intPtr(0), []string{"client_name"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChatParams(Template{ParamCount: tt.count, Params: tt.params}, values)
			if len(got) != len(tt.want) {
				t.Fatalf("ChatParams() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ChatParams()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

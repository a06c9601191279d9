package datetime_test

import (
	"fmt"
	"log"

	"leadify-meeting-orchestrator/internal/datetime"
)

// Example demonstrates converting a business-zone wall clock for a calendar file
func Example() {
	dt := datetime.New(&datetime.DateTimeConfig{DefaultTimezone: "Asia/Jerusalem"})

	start, err := dt.ToUTCInstant("2025-06-10", "14:30")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(dt.Format(start).ToICS())
	fmt.Println(dt.Format(start).ToEmailTemplate(""))
	// Output:
	// 20250610T113000Z
	// Tuesday, June 10, 2025 at 14:30 (+03:00)
}

// ExampleFormatOffset shows offset rendering for template placeholders
func ExampleFormatOffset() {
	fmt.Println(datetime.FormatOffset(120))
	fmt.Println(datetime.FormatOffset(-300))
	fmt.Println(datetime.FormatOffset(330))
	// Output:
	// +02:00
	// -05:00
	// +05:30
}

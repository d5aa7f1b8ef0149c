package pipeline

import (
	"time"

	"cloud.google.com/go/civil"
)

func civilDate(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

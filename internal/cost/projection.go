package cost

// Projection is an hourly amount extended over longer billing periods, using
// a 30-day month and a 365-day year.
type Projection struct {
	Hourly  float64
	Daily   float64
	Monthly float64
	Annual  float64
}

func Project(hourly float64) Projection {
	return Projection{
		Hourly:  hourly,
		Daily:   hourly * HoursPerDay,
		Monthly: hourly * HoursPerMonth,
		Annual:  hourly * HoursPerYear,
	}
}

// SavingsPercent is the share of before that moving to after removes. It is
// negative when after costs more, and 0 when before is free.
func SavingsPercent(before, after float64) float64 {
	if before <= 0 {
		return 0
	}
	return (before - after) / before * 100
}

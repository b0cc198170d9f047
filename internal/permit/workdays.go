package permit

import "time"

// pickupWorkingDays is how many working days a DELAYED death registration
// gets before the registered document is ready for pickup.
const pickupWorkingDays = 11

// addWorkingDays walks forward from the given date one calendar day at a
// time, counting only Monday through Friday (no holiday calendar), and
// returns the date reached once n working days have been counted. The start
// date itself counts when it falls on a weekday, so a Friday start with
// n=11 lands exactly 15 calendar days later.
func addWorkingDays(from time.Time, n int) time.Time {
	deadline := from
	counted := 0
	for counted < n {
		switch deadline.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			counted++
		}
		deadline = deadline.AddDate(0, 0, 1)
	}
	return deadline
}

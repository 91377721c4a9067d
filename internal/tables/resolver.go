// Package tables matches parties to physical table types.
package tables

import (
	"sort"

	"reserva/internal/model"
)

// Availability is a table type together with its free units for one slot.
type Availability struct {
	Config    model.TableConfiguration
	UnitsFree int
}

// ActiveConfigs returns the schedule's own table configurations when it has any,
// otherwise the restaurant-wide ones. Inactive configurations are dropped.
func ActiveConfigs(schedule *model.Schedule, global []model.TableConfiguration) []model.TableConfiguration {
	source := global
	if schedule != nil && len(schedule.CustomTableConfigs) > 0 {
		source = schedule.CustomTableConfigs
	}

	result := make([]model.TableConfiguration, 0, len(source))
	for _, c := range source {
		if c.IsActive {
			result = append(result, c)
		}
	}
	return result
}

// CalculateAvailability counts, per table type, the units not held by an active
// reservation overlapping [slotStart, slotEnd). Times are minutes since midnight.
// fallbackDuration applies to reservations stored without a duration.
func CalculateAvailability(
	configs []model.TableConfiguration,
	reservations []model.Reservation,
	slotStart, slotEnd, fallbackDuration int,
) []Availability {
	result := make([]Availability, 0, len(configs))
	for _, c := range configs {
		used := 0
		for i := range reservations {
			r := &reservations[i]
			if !r.IsActive() || !r.AssignedTo(c.ID) {
				continue
			}
			if r.OverlapsWith(slotStart, slotEnd, fallbackDuration) {
				used++
			}
		}
		free := c.Quantity - used
		if free < 0 {
			free = 0
		}
		result = append(result, Availability{Config: c, UnitsFree: free})
	}
	return result
}

// FindSuitableTable picks the smallest table type that fits the party and still has
// a free unit, breaking ties by lowest id. It returns nil when nothing fits.
func FindSuitableTable(partySize int, availability []Availability) *model.TableConfiguration {
	candidates := make([]model.TableConfiguration, 0, len(availability))
	for _, a := range availability {
		if a.UnitsFree >= 1 && a.Config.Fits(partySize) {
			candidates = append(candidates, a.Config)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Seats != candidates[j].Seats {
			return candidates[i].Seats < candidates[j].Seats
		}
		return candidates[i].ID < candidates[j].ID
	})

	best := candidates[0]
	return &best
}

package entity

// DeliverySlot is a fixed daily delivery window.
type DeliverySlot struct {
	Label  string
	Hour   int
	Minute int
}

// DeliverySlots keys the fixed slots by their "HH:MM" display time.
var DeliverySlots = map[string]DeliverySlot{
	"08:15": {Label: "Breakfast", Hour: 8, Minute: 15},
	"12:00": {Label: "Lunch", Hour: 12, Minute: 0},
	"15:30": {Label: "Tea Break", Hour: 15, Minute: 30},
	"19:00": {Label: "Dinner", Hour: 19, Minute: 0},
}

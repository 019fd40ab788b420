// Package labels resolves detector class identifiers to display text.
package labels

import "fmt"

// cocoLabels indexes the 80 COCO classes by model class id.
var cocoLabels = []string{
	"Person",
	"Bicycle",
	"Car",
	"Motorcycle",
	"Airplane",
	"Bus",
	"Train",
	"Truck",
	"Boat",
	"Traffic light",
	"Fire hydrant",
	"Stop sign",
	"Parking meter",
	"Bench",
	"Bird",
	"Cat",
	"Dog",
	"Horse",
	"Sheep",
	"Cow",
	"Elephant",
	"Bear",
	"Zebra",
	"Giraffe",
	"Backpack",
	"Umbrella",
	"Handbag",
	"Tie",
	"Suitcase",
	"Frisbee",
	"Skis",
	"Snowboard",
	"Sports ball",
	"Kite",
	"Baseball bat",
	"Baseball glove",
	"Skateboard",
	"Surfboard",
	"Tennis racket",
	"Bottle",
	"Wine glass",
	"Cup",
	"Fork",
	"Knife",
	"Spoon",
	"Bowl",
	"Banana",
	"Apple",
	"Sandwich",
	"Orange",
	"Broccoli",
	"Carrot",
	"Hot dog",
	"Pizza",
	"Donut",
	"Cake",
	"Chair",
	"Couch",
	"Potted plant",
	"Bed",
	"Dining table",
	"Toilet",
	"TV",
	"Laptop",
	"Mouse",
	"Remote",
	"Keyboard",
	"Cell phone",
	"Microwave",
	"Oven",
	"Toaster",
	"Sink",
	"Refrigerator",
	"Book",
	"Clock",
	"Vase",
	"Scissors",
	"Teddy bear",
	"Hair dryer",
	"Toothbrush",
}

// Resolve returns the display name for a class id, or "class <n>" for ids
// outside the table.
func Resolve(classID int) string {
	if classID >= 0 && classID < len(cocoLabels) {
		return cocoLabels[classID]
	}
	return fmt.Sprintf("class %d", classID)
}

// Count returns the number of known classes.
func Count() int {
	return len(cocoLabels)
}

package markers

import (
	"fmt"

	"github.com/dpup/ridemap/internal/host"
)

// Category tags a marker collection. Each category renders in its own layer
// with a fixed style.
type Category string

const (
	CategoryDriver           Category = "driver"
	CategoryPassenger        Category = "passenger"
	CategoryHome             Category = "home"
	CategoryFavorite         Category = "favorite"
	CategoryLandmark         Category = "landmark"
	CategoryPickupQueue      Category = "pickup_queue"
	CategoryDestinationQueue Category = "destination_queue"
	CategoryRestaurant       Category = "restaurant"
	CategoryHospital         Category = "hospital"
	CategoryHotel            Category = "hotel"
	CategoryAttraction       Category = "attraction"
	CategoryMall             Category = "mall"
	CategoryTransportHub     Category = "transport_hub"
)

// LayerPrefix namespaces every layer the reconciler owns
const LayerPrefix = "markers/"

var categories = []Category{
	CategoryDriver,
	CategoryPassenger,
	CategoryHome,
	CategoryFavorite,
	CategoryLandmark,
	CategoryPickupQueue,
	CategoryDestinationQueue,
	CategoryRestaurant,
	CategoryHospital,
	CategoryHotel,
	CategoryAttraction,
	CategoryMall,
	CategoryTransportHub,
}

var styles = map[Category]host.Style{
	CategoryDriver:           {Icon: "car", Color: "#1E88E5", Size: 1.2},
	CategoryPassenger:        {Icon: "person", Color: "#43A047", Size: 1.0},
	CategoryHome:             {Icon: "home", Color: "#6D4C41", Size: 1.0},
	CategoryFavorite:         {Icon: "star", Color: "#FDD835", Size: 1.0},
	CategoryLandmark:         {Icon: "monument", Color: "#8E24AA", Size: 1.0},
	CategoryPickupQueue:      {Icon: "pin-pickup", Color: "#00ACC1", Size: 1.0},
	CategoryDestinationQueue: {Icon: "flag", Color: "#E53935", Size: 1.1},
	CategoryRestaurant:       {Icon: "restaurant", Color: "#FB8C00", Size: 0.8},
	CategoryHospital:         {Icon: "hospital", Color: "#D81B60", Size: 0.8},
	CategoryHotel:            {Icon: "lodging", Color: "#3949AB", Size: 0.8},
	CategoryAttraction:       {Icon: "attraction", Color: "#7CB342", Size: 0.8},
	CategoryMall:             {Icon: "shop", Color: "#5E35B1", Size: 0.8},
	CategoryTransportHub:     {Icon: "bus", Color: "#546E7A", Size: 0.8},
}

// Categories returns every category in render order
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Style returns the fixed style of c
func (c Category) Style() host.Style {
	return styles[c]
}

// Layer returns the annotation layer c renders into
func (c Category) Layer() string {
	return LayerPrefix + string(c)
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	_, ok := styles[c]
	return ok
}

// IsPOI reports whether c is one of the point-of-interest categories
func (c Category) IsPOI() bool {
	switch c {
	case CategoryRestaurant, CategoryHospital, CategoryHotel,
		CategoryAttraction, CategoryMall, CategoryTransportHub:
		return true
	}
	return false
}

// ParseCategory converts a string to a Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown marker category %q", s)
	}
	return c, nil
}

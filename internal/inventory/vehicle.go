package inventory

// Vehicle is a dealer inventory record with its relations resolved.
// Brand/model/trim names come from two valuation tables (FIPE and KBB);
// the FIPE name wins whenever both are present.
type Vehicle struct {
	ID           string
	AdvertiserID string
	CategoryID   int // 1 = cars, 2 = trucks, 3 = motorcycles

	FipeBrandName string
	KbbBrandName  string
	FipeModelName string
	KbbModelName  string
	FipeTrimName  string
	KbbTrimName   string

	ModelYear       int
	ManufactureYear int
	Price           float64
	Mileage         int
	Doors           int
	Plate           string
	Renavam         string
	Description     string
	Notes           string
	ZeroKm          bool
	Armored         bool
	Spotlight       bool
	VideoURL        string

	AdvertiserPhone   string
	AdvertiserZipCode string

	Color        string
	Fuel         string
	Transmission string
	BodyStyle    string

	Accessories []string
	Images      []string // image file names, CDN prefix applied by adapters
}

func (v *Vehicle) Brand() string {
	if v.FipeBrandName != "" {
		return v.FipeBrandName
	}
	return v.KbbBrandName
}

func (v *Vehicle) Model() string {
	if v.FipeModelName != "" {
		return v.FipeModelName
	}
	return v.KbbModelName
}

func (v *Vehicle) Trim() string {
	if v.FipeTrimName != "" {
		return v.FipeTrimName
	}
	return v.KbbTrimName
}

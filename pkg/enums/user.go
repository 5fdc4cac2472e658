package enums

type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = []UserRole{UserRoleCustomer, UserRoleAdmin}

func (r UserRole) String() string { return string(r) }
func (r UserRole) IsValid() bool  { return oneOf(r, userRoles) }

// LocationType classifies a delivery address.
type LocationType string

const (
	LocationTypeHouse     LocationType = "house"
	LocationTypeApartment LocationType = "apartment"
	LocationTypeOffice    LocationType = "office"
	LocationTypeHotel     LocationType = "hotel"
	LocationTypeOther     LocationType = "other"
)

var locationTypes = []LocationType{
	LocationTypeHouse,
	LocationTypeApartment,
	LocationTypeOffice,
	LocationTypeHotel,
	LocationTypeOther,
}

func (l LocationType) String() string { return string(l) }
func (l LocationType) IsValid() bool  { return oneOf(l, locationTypes) }

func ParseLocationType(value string) (LocationType, error) {
	return parse("location type", value, locationTypes)
}

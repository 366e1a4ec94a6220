package model

// KwaraLGAs are the local government areas accepted for users, PHCs and staff.
var KwaraLGAs = []string{
	"Asa",
	"Baruten",
	"Edu",
	"Ekiti",
	"Ifelodun",
	"Ilorin East",
	"Ilorin South",
	"Ilorin West",
	"Irepodun",
	"Isin",
	"Kaiama",
	"Moro",
	"Offa",
	"Oke Ero",
	"Oyun",
	"Patigi",
}

var BlogCategories = []string{
	"Immunization",
	"Maternal Health",
	"Child Health",
	"Disease Control",
	"Health Education",
	"Partnerships",
	"Community Health",
	"Nutrition",
	"Family Planning",
	"General Health",
}

var StaffTiers = []string{"Tier 1", "Tier 2", "Tier 3"}

var StaffCadres = []string{
	"Medical",
	"Nursing",
	"Public Health",
	"Laboratory",
	"Pharmacy",
	"Health Education",
	"Community Health",
	"Nutrition",
	"Administration",
	"Finance",
	"ICT",
	"Engineering",
}

func IsKwaraLGA(v string) bool { return contains(KwaraLGAs, v) }
func IsBlogCategory(v string) bool { return contains(BlogCategories, v) }
func IsStaffTier(v string) bool { return contains(StaffTiers, v) }
func IsStaffCadre(v string) bool { return contains(StaffCadres, v) }

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

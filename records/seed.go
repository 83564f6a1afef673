package records

import (
	"context"

	"github.com/Daskott/relief/models"
)

type seedProvince struct {
	name    string
	code    string
	order   int
	records []models.CreateHelpRecordDto
}

// SeedResult counts the rows Seed wrote; rows already present are skipped.
type SeedResult struct {
	Provinces   int
	HelpRecords int
}

func float(v float64) *float64 {
	return &v
}

var seedData = []seedProvince{
	{
		name: "Phú Yên", code: "PY", order: 1,
		records: []models.CreateHelpRecordDto{
			{IsForSelf: true, LocationName: "Thôn 12, Phú Yên", AdultCount: 2, ChildCount: 1, PhoneNumber: "+84901234501",
				EssentialItems: models.EssentialItems{models.FOOD_ITEM, models.MEDICAL_ITEM}, Latitude: float(13.0883), Longitude: float(109.2942)},
			{LocationName: "Xã Hòa Quang, Phú Yên", AdultCount: 1, ChildCount: 1, PhoneNumber: "+84901234502",
				EssentialItems: models.EssentialItems{models.FOOD_ITEM, models.MEDICAL_ITEM}, Address: "Xã Hòa Quang, huyện Phú Hòa, tỉnh Phú Yên"},
		},
	},
	{
		name: "Bình Định", code: "BD", order: 2,
		records: []models.CreateHelpRecordDto{
			{IsForSelf: true, LocationName: "Thôn 5, Bình Định", AdultCount: 3, ChildCount: 2, PhoneNumber: "+84901234504",
				EssentialItems: models.EssentialItems{models.FOOD_ITEM, models.CLOTHES_ITEM, models.MEDICAL_ITEM}, Latitude: float(13.7758), Longitude: float(109.2233)},
			{LocationName: "Xã Phước Mỹ, Bình Định", AdultCount: 2, PhoneNumber: "+84901234505",
				EssentialItems: models.EssentialItems{models.FOOD_ITEM, models.TOOLS_ITEM}, Address: "Xã Phước Mỹ, huyện Tuy Phước, tỉnh Bình Định"},
		},
	},
	{
		name: "Khánh Hòa", code: "KH", order: 3,
		records: []models.CreateHelpRecordDto{
			{IsForSelf: true, LocationName: "Thôn 1, Khánh Hòa", AdultCount: 2, ChildCount: 1, PhoneNumber: "+84901234507",
				EssentialItems: models.EssentialItems{models.FOOD_ITEM, models.MEDICAL_ITEM, models.CLOTHES_ITEM}, Latitude: float(12.2388), Longitude: float(109.1967)},
			{LocationName: "Xã Ninh Đông, Khánh Hòa", AdultCount: 4, ChildCount: 2, PhoneNumber: "+84901234508",
				EssentialItems: models.EssentialItems{models.FOOD_ITEM, models.MEDICAL_ITEM, models.TOOLS_ITEM}, Address: "Xã Ninh Đông, huyện Ninh Hòa, tỉnh Khánh Hòa"},
		},
	},
	{
		name: "Quảng Nam", code: "QN", order: 4,
		records: []models.CreateHelpRecordDto{
			{IsForSelf: true, LocationName: "Thôn 4, Quảng Nam", AdultCount: 2, ChildCount: 1, PhoneNumber: "+84901234510",
				EssentialItems: models.EssentialItems{models.FOOD_ITEM, models.MEDICAL_ITEM}, Latitude: float(15.8801), Longitude: float(108.338)},
			{LocationName: "Xã Đại Hưng, Quảng Nam", AdultCount: 3, ChildCount: 1, PhoneNumber: "+84901234511",
				EssentialItems: models.EssentialItems{models.FOOD_ITEM, models.CLOTHES_ITEM, models.MEDICAL_ITEM}, MapLink: "https://maps.google.com/?q=15.86,108.2"},
		},
	},
}

// Seed writes the sample provinces and their help records. Provinces are
// matched by name and help records by phone number, so running it twice writes
// nothing the second time.
func Seed(ctx context.Context, r *Records) (*SeedResult, error) {
	result := &SeedResult{}

	for _, sp := range seedData {
		province, err := r.Provinces.GetByName(ctx, sp.name)
		if err != nil {
			return nil, err
		}

		if province == nil {
			order := sp.order
			province, err = r.Provinces.Create(ctx, models.CreateProvinceDto{
				Name:         sp.name,
				Code:         sp.code,
				DisplayOrder: &order,
			})
			if err != nil {
				return nil, err
			}
			result.Provinces++
		}

		for _, dto := range sp.records {
			existing, err := r.HelpRecords.ListByPhone(ctx, dto.PhoneNumber)
			if err != nil {
				return nil, err
			}

			if len(existing) > 0 {
				continue
			}

			dto.ProvinceID = province.ID
			_, err = r.HelpRecords.Create(ctx, dto)
			if err != nil {
				return nil, err
			}
			result.HelpRecords++
		}
	}

	logg.Infof("seeded %v provinces and %v help records", result.Provinces, result.HelpRecords)
	return result, nil
}

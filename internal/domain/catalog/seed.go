package catalog

import "time"

// SeedRecords 返回内置示例数据集,作为回退链的最后一环,
// 与 data/startups.csv 的初始内容一致。
func SeedRecords(now time.Time) []StartupRecord {
	records := []StartupRecord{
		{
			Name:        "TechFlow",
			Description: "AI-powered workflow automation platform for enterprise teams",
			Industry:    "Enterprise Software",
			Funding:     "$15M Series A",
			Location:    "San Francisco, CA",
			Founded:     2021,
			TeamSize:    45,
		},
		{
			Name:        "GreenEnergy",
			Description: "Renewable energy solutions for residential and commercial buildings",
			Industry:    "Clean Energy",
			Funding:     "$8M Seed",
			Location:    "Austin, TX",
			Founded:     2022,
			TeamSize:    23,
		},
		{
			Name:        "HealthAI",
			Description: "Machine learning platform for early disease detection and diagnosis",
			Industry:    "Healthcare",
			Funding:     "$25M Series B",
			Location:    "Boston, MA",
			Founded:     2020,
			TeamSize:    67,
		},
		{
			Name:        "EduTech",
			Description: "Personalized learning platform using adaptive algorithms",
			Industry:    "Education",
			Funding:     "$12M Series A",
			Location:    "Seattle, WA",
			Founded:     2021,
			TeamSize:    34,
		},
		{
			Name:        "FinTechPro",
			Description: "Blockchain-based payment processing and financial services",
			Industry:    "Financial Services",
			Funding:     "$30M Series C",
			Location:    "New York, NY",
			Founded:     2019,
			TeamSize:    89,
		},
	}
	for i := range records {
		records[i].Source = SourceSeed
		records[i].Normalize(now)
	}
	return records
}

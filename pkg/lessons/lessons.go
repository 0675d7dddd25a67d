// Package lessons holds the static practice-call catalog and the prompt
// builders that turn a lesson into model instructions.
package lessons

// LeadTemperature describes how receptive the prospect starts out.
type LeadTemperature string

const (
	LeadWarm    LeadTemperature = "warm"
	LeadMixed   LeadTemperature = "mixed"
	LeadCold    LeadTemperature = "cold"
	LeadHostile LeadTemperature = "hostile"
)

// Character is the prospect persona the trainee calls.
type Character struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Product is what the trainee is selling in the scenario.
type Product struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Category    string   `json:"category"`
}

// Lesson is a single practice scenario.
type Lesson struct {
	ID                int             `json:"id"`
	Slug              string          `json:"slug"`
	LevelLabel        string          `json:"levelLabel"`
	Title             string          `json:"title"`
	Character         Character       `json:"character"`
	Product           Product         `json:"product"`
	CompanyDesc       string          `json:"companyDescription"`
	LeadTemperature   LeadTemperature `json:"leadTemperature"`
	Summary           string          `json:"summary"`
	PrimaryPainPoints []string        `json:"primaryPainPoints"`
	Goal              string          `json:"goal"`
}

var catalog = []Lesson{
	{
		ID:         1,
		Slug:       "beginner",
		LevelLabel: "Beginner",
		Title:      "Warm lead with budget concerns (Marketing automation demo)",
		Character:  Character{Name: "Sarah Thompson", Role: "Marketing Manager"},
		Product: Product{
			Title:       "FlowReach Marketing Automation",
			Description: "Lead scoring, nurture campaigns and attribution reporting for mid-market marketing teams",
			Features:    []string{"Automated lead scoring", "Multi-touch attribution", "Campaign ROI dashboards"},
			Category:    "Marketing automation",
		},
		CompanyDesc:     "Fifty-person software company, Q4 budget planning",
		LeadTemperature: LeadWarm,
		Summary:         "Sarah requested a demo after downloading a whitepaper and is interested but mentioned budget concerns. You need to qualify needs and book a technical demo.",
		PrimaryPainPoints: []string{
			"Manual lead scoring processes",
			"Limited reporting that makes ROI hard to show to leadership",
		},
		Goal: "Qualify specific needs and schedule a technical demonstration tailored to requirements",
	},
	{
		ID:         2,
		Slug:       "intermediate",
		LevelLabel: "Intermediate",
		Title:      "Skeptical referral with past vendor disappointment (Manufacturing ops)",
		Character:  Character{Name: "Michael Chen", Role: "Operations Director"},
		Product: Product{
			Title:       "LineSight Operations Suite",
			Description: "Inventory and production scheduling software for mid-size manufacturers",
			Features:    []string{"Real-time inventory tracking", "Constraint-aware scheduling", "Delivery commitment forecasting"},
			Category:    "Manufacturing operations",
		},
		CompanyDesc:     "Five hundred-employee manufacturing company",
		LeadTemperature: LeadMixed,
		Summary:         "Michael was referred but has not replied to emails and is skeptical due to a negative ERP experience. Overcome resistance and uncover aligned business needs.",
		PrimaryPainPoints: []string{
			"Inventory management inefficiencies",
			"Production scheduling challenges affecting delivery commitments",
		},
		Goal: "Overcome initial resistance and identify genuine business needs that align with your solution",
	},
	{
		ID:         3,
		Slug:       "advanced",
		LevelLabel: "Advanced",
		Title:      "Analytical procurement leader comparing vendors (Retail enterprise)",
		Character:  Character{Name: "Jennifer Rodriguez", Role: "Chief Procurement Officer"},
		Product: Product{
			Title:       "ChainView Supply Platform",
			Description: "Supply chain visibility and vendor performance management for enterprise retail",
			Features:    []string{"End-to-end shipment visibility", "Vendor scorecards", "Regional performance analytics"},
			Category:    "Supply chain",
		},
		CompanyDesc:     "Fortune 500 retail chain evaluating multiple solutions",
		LeadTemperature: LeadCold,
		Summary:         "Jennifer is cost-focused, on a tight timeline, and evaluating three competitors. Differentiate and secure her commitment to proceed.",
		PrimaryPainPoints: []string{
			"Supply chain visibility challenges",
			"Vendor performance management across regions and categories",
		},
		Goal: "Differentiate clearly and secure commitment to move forward",
	},
	{
		ID:         4,
		Slug:       "expert",
		LevelLabel: "Expert",
		Title:      "Hostile CFO driving cost reduction and consolidation (Global logistics)",
		Character:  Character{Name: "David Patel", Role: "Chief Financial Officer"},
		Product: Product{
			Title:       "Meridian Logistics Intelligence",
			Description: "Unified data and SLA management platform for global logistics enterprises",
			Features:    []string{"Cross-region data consolidation", "SLA breach prediction", "Cost-to-serve analytics"},
			Category:    "Logistics",
		},
		CompanyDesc:     "Global logistics enterprise under budget freeze with strict compliance",
		LeadTemperature: LeadHostile,
		Summary:         "David demands steep discounts with penalties and threatens to choose a competitor bundle. Defend value and reframe to executive business impact.",
		PrimaryPainPoints: []string{
			"Fragmented data systems",
			"Rising operating costs across regions",
			"Missed SLAs impacting satisfaction and retention",
		},
		Goal: "Secure agreement for a limited executive trial with clear success criteria",
	},
}

// All returns the full lesson catalog.
func All() []Lesson {
	out := make([]Lesson, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks up a lesson by id.
func ByID(id int) (Lesson, bool) {
	for _, l := range catalog {
		if l.ID == id {
			return l, true
		}
	}
	return Lesson{}, false
}

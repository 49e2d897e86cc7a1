// Package roadmap holds the static five-year plans shown next to a stream.
package roadmap

import (
	"slices"
	"strings"
)

// Roadmap lists milestones for the first, third and fifth year after 10th grade.
type Roadmap struct {
	Stream string   `json:"stream"`
	Year1  []string `json:"year1"`
	Year3  []string `json:"year3"`
	Year5  []string `json:"year5"`
}

// DefaultStream is shown when a stream has no roadmap of its own.
const DefaultStream = "Software Engineering"

var catalogue = []Roadmap{
	{
		Stream: "Software Engineering",
		Year1:  []string{"Complete 12th grade with a focus on Physics, Chemistry, and Math (PCM)", "Start learning a programming language like Python or JavaScript", "Build a simple personal project, like a website or a small game"},
		Year3:  []string{"Get into a good engineering college for a B.Tech in Computer Science", "Participate in hackathons and coding competitions", "Secure an internship in a tech company"},
		Year5:  []string{"Graduate with a strong portfolio of projects", "Land a job as a Software Development Engineer (SDE 1)", "Contribute to a real-world product"},
	},
	{
		Stream: "Doctor",
		Year1:  []string{"Complete 12th grade with a focus on Physics, Chemistry, and Biology (PCB)", "Prepare for and score well in the NEET exam", "Volunteer at a local clinic or hospital"},
		Year3:  []string{"Secure admission to a reputable medical college for MBBS", "Focus on understanding foundational medical subjects", "Develop good clinical observation skills"},
		Year5:  []string{"Complete the first few years of your MBBS degree", "Start clinical rotations in different departments", "Decide on an area of interest for future specialization"},
	},
	{
		Stream: "Data Science",
		Year1:  []string{"Complete 12th grade with Math and preferably Computer Science", "Learn foundational statistics and probability", "Start a course on data analysis with Python"},
		Year3:  []string{"Pursue a degree in Statistics, Math, or Computer Science", "Work on data analysis projects with real datasets", "Do an internship as a Data Analyst"},
		Year5:  []string{"Graduate and start a Master's program in Data Science or a related field", "Master machine learning algorithms", "Get a job as a Junior Data Scientist"},
	},
	{
		Stream: "UX/UI Design",
		Year1:  []string{"Complete 12th grade, preferably from an Arts or Commerce stream", "Start learning design principles and psychology", "Build a portfolio with mock design projects for apps or websites"},
		Year3:  []string{"Enroll in a Bachelor of Design (B.Des) or a similar design course", "Master design tools like Figma", "Get an internship as a UI/UX design trainee"},
		Year5:  []string{"Graduate with a strong design portfolio", "Land a job as a Junior UX/UI Designer", "Work on designing features for a live product"},
	},
	{
		Stream: "Graphic Design",
		Year1:  []string{"Complete 12th grade, preferably from the Arts stream", "Develop sketching and illustration skills", "Become proficient in Adobe Illustrator and Photoshop"},
		Year3:  []string{"Pursue a degree in Fine Arts or a diploma in Graphic Design", "Create a diverse portfolio (branding, social media, etc.)", "Freelance for small clients to gain experience"},
		Year5:  []string{"Graduate and get a job at a design studio or marketing agency", "Work on branding projects for various clients", "Develop a unique design style"},
	},
	{
		Stream: "Marketing",
		Year1:  []string{"Complete 12th grade, preferably from the Commerce stream", "Read books on marketing and consumer behavior", "Start a blog or social media page on a topic you're passionate about"},
		Year3:  []string{"Pursue a BBA or a B.Com degree with a marketing specialization", "Learn about digital marketing tools (SEO, Google Ads)", "Intern with the marketing team of a company"},
		Year5:  []string{"Graduate and land a role as a Marketing Coordinator or Specialist", "Run your first major marketing campaign", "Analyze campaign data to measure success"},
	},
	{
		Stream: "Financial Analysis",
		Year1:  []string{"Complete 12th grade from the Commerce stream with Math", "Master accounting principles and Excel", "Follow the stock market and business news"},
		Year3:  []string{"Pursue a B.Com or BBA in Finance degree", "Learn financial modeling and valuation", "Intern at a financial firm or a bank"},
		Year5:  []string{"Graduate and prepare for certifications like CFA Level 1", "Get a job as a Junior Financial Analyst", "Assist in preparing financial reports for a company"},
	},
	{
		Stream: "Chartered Accountancy",
		Year1:  []string{"Complete 12th grade from the Commerce stream", "Register for the CA Foundation course", "Clear the Foundation exam"},
		Year3:  []string{"Clear the CA Intermediate exams (both groups)", "Begin your 3-year articleship training under a practicing CA", "Gain practical experience in audit, tax, and accounting"},
		Year5:  []string{"Appear for the CA Final exams", "Complete your articleship", "Qualify as a Chartered Accountant"},
	},
}

// Streams returns every stream with a roadmap, in catalogue order.
func Streams() []string {
	out := make([]string, len(catalogue))
	for i, r := range catalogue {
		out[i] = r.Stream
	}
	return out
}

// Lookup finds the roadmap for stream, ignoring case and surrounding space.
func Lookup(stream string) (Roadmap, bool) {
	stream = strings.TrimSpace(stream)
	for _, r := range catalogue {
		if strings.EqualFold(r.Stream, stream) {
			return clone(r), true
		}
	}
	return Roadmap{}, false
}

// For returns the roadmap for stream, falling back to DefaultStream's plan
// under the requested name.
func For(stream string) Roadmap {
	if r, ok := Lookup(stream); ok {
		return r
	}
	r, _ := Lookup(DefaultStream)
	r.Stream = strings.TrimSpace(stream)
	return r
}

// Others returns the catalogue streams not present in recommended.
func Others(recommended []string) []string {
	var out []string
	for _, s := range Streams() {
		if !slices.ContainsFunc(recommended, func(r string) bool { return strings.EqualFold(r, s) }) {
			out = append(out, s)
		}
	}
	return out
}

func clone(r Roadmap) Roadmap {
	r.Year1 = slices.Clone(r.Year1)
	r.Year3 = slices.Clone(r.Year3)
	r.Year5 = slices.Clone(r.Year5)
	return r
}

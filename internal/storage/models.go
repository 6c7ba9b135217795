package storage

import "github.com/kalambet/meapi/internal/profile"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = profile.ErrNotFound

// ErrDuplicateEmail is returned when an insert collides with the unique
// email index.
var ErrDuplicateEmail = profile.ErrEmailTaken

const profileColumns = `id, name, email, phone, bio, skills, created_at, updated_at`

// SampleProfiles is the demo data loaded by `meapi seed`.
var SampleProfiles = []profile.CreateRequest{
	{
		Name:   "Sanjay Parihar",
		Email:  "sanjay@example.com",
		Phone:  "+91 9876543210",
		Bio:    "Full Stack Developer with 5 years of experience",
		Skills: "Python, FastAPI, React, JavaScript, PostgreSQL",
	},
	{
		Name:   "Raj Kumar",
		Email:  "raj@example.com",
		Phone:  "+91 8765432109",
		Bio:    "Backend Developer specializing in cloud services",
		Skills: "Python, Django, PostgreSQL, Docker, Kubernetes",
	},
	{
		Name:   "Priya Singh",
		Email:  "priya@example.com",
		Phone:  "+91 7654321098",
		Bio:    "Frontend Developer passionate about UI/UX",
		Skills: "React, JavaScript, HTML, CSS, TypeScript, Vue.js",
	},
	{
		Name:   "Amit Verma",
		Email:  "amit@example.com",
		Phone:  "+91 6543210987",
		Bio:    "DevOps Engineer with AWS expertise",
		Skills: "Docker, Kubernetes, Python, AWS, Jenkins",
	},
	{
		Name:   "Neha Sharma",
		Email:  "neha@example.com",
		Phone:  "+91 5432109876",
		Bio:    "Data Engineer and ML enthusiast",
		Skills: "Python, SQL, Machine Learning, Apache Spark, Pandas",
	},
}

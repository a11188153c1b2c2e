package services

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/ideaforge/pkg/models"
)

// defaultSynthKeyword stands in for a blank keyword so synthesized text never
// has holes in it.
const defaultSynthKeyword = "product"

// ideaSkeleton is a canned idea with the keyword substituted in. kw is the
// keyword as given, title is the keyword with its first letter upper-cased.
type ideaSkeleton struct {
	name                 func(kw, title string) string
	tagline              string
	description          string
	techStack            []string
	keyFeatures          []string
	revenueModel         []string
	problemSolved        string
	solution             string
	competitiveAdvantage []string
}

var ideaSkeletons = []ideaSkeleton{
	{
		name:        func(kw, title string) string { return title + "AI Pro" },
		tagline:     "AI-powered %s platform for modern professionals",
		description: "An intelligent platform that changes how professionals work with %s. It learns from usage to recommend next actions, automates routine tasks and surfaces insights on a real-time dashboard.",
		techStack:   []string{"React", "Node.js", "PostgreSQL", "Redis", "Stripe"},
		keyFeatures: []string{
			"Personalized recommendations from usage patterns",
			"Workflow automation for repetitive tasks",
			"Analytics dashboard with custom reports",
			"Team workspaces with role-based access",
		},
		revenueModel:         []string{"Free tier with core features", "Pro plan at $29/month", "Enterprise plan with custom pricing"},
		problemSolved:        "Current %s tools are fragmented and require too much manual effort",
		solution:             "One AI-assisted workspace that automates and predicts %s workflows",
		competitiveAdvantage: []string{"AI-native product design", "Data network effects across teams"},
	},
	{
		name:        func(kw, title string) string { return kw + " Connect Hub" },
		tagline:     "Community marketplace connecting %s enthusiasts worldwide",
		description: "A marketplace and community that brings %s enthusiasts, experts and businesses together. Members book sessions with verified experts, trade products and join group challenges.",
		techStack:   []string{"Next.js", "TypeScript", "PostgreSQL", "Socket.io", "Stripe"},
		keyFeatures: []string{
			"Verified expert profiles",
			"Matching of members with experts and peers",
			"Built-in video sessions",
			"Community challenges with leaderboards",
		},
		revenueModel:         []string{"8% commission on transactions", "Premium membership at $19/month", "White-label licensing for businesses"},
		problemSolved:        "The %s community is spread across many platforms with no trusted place to find expertise",
		solution:             "A single platform combining %s community features with an expert marketplace",
		competitiveAdvantage: []string{"Two-sided network effects", "Verification of every expert"},
	},
	{
		name:        func(kw, title string) string { return "Smart" + title + " Analytics" },
		tagline:     "Data-driven insights for %s decision making",
		description: "An analytics platform that aggregates %s data from many sources and turns it into forecasts, benchmarks and alerts on customizable dashboards.",
		techStack:   []string{"Python", "FastAPI", "React", "PostgreSQL", "Apache Kafka"},
		keyFeatures: []string{
			"Predictive forecasting models",
			"Drag-and-drop dashboard builder",
			"Competitor benchmarking",
			"Automated reports delivered by email or Slack",
		},
		revenueModel:         []string{"Starter plan at $99/month", "Professional plan at $299/month", "Enterprise contracts"},
		problemSolved:        "%s businesses lack analytics tailored to their industry",
		solution:             "Purpose-built %s analytics with predefined KPIs and predictive insights",
		competitiveAdvantage: []string{"Industry-specific benchmark datasets", "Forecasting tuned per vertical"},
	},
	{
		name:        func(kw, title string) string { return kw + " Learning Lab" },
		tagline:     "Personalized %s skill development",
		description: "An adaptive learning platform for %s that adjusts course difficulty and pacing to each learner, with hands-on projects, mentorship and certification paths.",
		techStack:   []string{"Vue.js", "Node.js", "GraphQL", "MongoDB", "WebRTC"},
		keyFeatures: []string{
			"Adaptive curriculum",
			"Virtual practice labs",
			"Peer study groups",
			"Skill gap analysis with a learning roadmap",
		},
		revenueModel:         []string{"Individual subscription at $39/month", "Corporate training plans", "Certification fees"},
		problemSolved:        "Generic online courses do not adapt to how people learn %s",
		solution:             "AI-personalized %s learning paths with industry-recognized certificates",
		competitiveAdvantage: []string{"Personalization engine", "Partnerships with industry employers"},
	},
	{
		name:        func(kw, title string) string { return kw + " Optimizer" },
		tagline:     "Intelligent automation for %s workflows",
		description: "A workflow automation platform for %s teams. It analyzes existing processes, finds bottlenecks and applies improvements automatically, then reports the time and cost saved.",
		techStack:   []string{"React", "Go", "PostgreSQL", "Redis", "Docker"},
		keyFeatures: []string{
			"Bottleneck detection",
			"No-code automation builder",
			"Smart task routing by team capacity",
			"Cost tracking per workflow",
		},
		revenueModel:         []string{"Usage-based pricing per automated task", "Team plans from $79/month", "Enterprise consulting"},
		problemSolved:        "%s teams lose hours to repetitive tasks and slow handoffs",
		solution:             "Automation that learns %s processes and improves them continuously",
		competitiveAdvantage: []string{"Self-tuning automations", "Deep integrations with common tools"},
	},
	{
		name:        func(kw, title string) string { return title + "Flow Mobile" },
		tagline:     "Your %s companion in your pocket",
		description: "A mobile-first app that helps people plan, track and share everything %s. It syncs offline, sends timely reminders and connects to the wearables and services users already have.",
		techStack:   []string{"React Native", "Node.js", "PostgreSQL", "Firebase Cloud Messaging"},
		keyFeatures: []string{
			"Offline-first tracking",
			"Smart reminders",
			"Sharing with friends and family",
			"Integrations with wearables",
		},
		revenueModel:         []string{"Free app with in-app purchases", "Plus subscription at $7/month"},
		problemSolved:        "People manage %s with scattered notes and apps that do not talk to each other",
		solution:             "One mobile hub that organizes %s and nudges users at the right moment",
		competitiveAdvantage: []string{"Offline reliability", "Habit-forming reminder design"},
	},
}

// SynthesizeIdea builds a complete idea for keyword from the canned skeletons.
// The result depends only on (keyword, index). Indexes past the number of
// skeletons cycle through them again with a numeric suffix on the name.
func SynthesizeIdea(keyword string, index int) *models.Idea {
	kw := strings.TrimSpace(keyword)
	if kw == "" {
		kw = defaultSynthKeyword
	}
	if index < 0 {
		index = -index
	}
	title := capitalize(kw)

	sk := ideaSkeletons[index%len(ideaSkeletons)]
	name := sk.name(kw, title)
	if round := index / len(ideaSkeletons); round > 0 {
		name = fmt.Sprintf("%s %d", name, round+1)
	}

	return &models.Idea{
		Keyword:              keyword,
		Name:                 name,
		Tagline:              fmt.Sprintf(sk.tagline, kw),
		Description:          fmt.Sprintf(sk.description, kw),
		TechStack:            append([]string{}, sk.techStack...),
		KeyFeatures:          append([]string{}, sk.keyFeatures...),
		RevenueModel:         append([]string{}, sk.revenueModel...),
		ProblemSolved:        []string{capitalize(fmt.Sprintf(sk.problemSolved, kw))},
		Solution:             []string{capitalize(fmt.Sprintf(sk.solution, kw))},
		CompetitiveAdvantage: append([]string{}, sk.competitiveAdvantage...),
		Source:               models.IdeaSourceSynthesized,
	}
}

// SynthesizeIdeas returns count synthesized ideas for indexes 0..count-1.
func SynthesizeIdeas(keyword string, count int) []*models.Idea {
	ideas := make([]*models.Idea, 0, count)
	for i := 0; i < count; i++ {
		ideas = append(ideas, SynthesizeIdea(keyword, i))
	}
	return ideas
}

// SynthesizeArtifact builds a starter architecture and file set from the
// idea's own fields. It makes no external calls.
func SynthesizeArtifact(idea *models.Idea) *models.CodeArtifact {
	arch := SynthesizeArchitecture(idea)
	return &models.CodeArtifact{
		IdeaID:            idea.ID,
		Name:              idea.Name,
		Description:       idea.Description,
		Architecture:      arch,
		Files:             SynthesizeFiles(idea, arch),
		SetupInstructions: "Run `npm install` in the project root, copy .env.example to .env, then start the API with `npm run server` and the web app with `npm start`.",
		DeploymentGuide:   "Build the web app with `npm run build`, serve the build directory from a CDN and deploy server/ to any Node.js host with DATABASE_URL set.",
		TestingStrategy:   "Unit test API routes with Jest and supertest, and component test the dashboard with React Testing Library.",
	}
}

// SynthesizeArchitecture derives a three-tier architecture from an idea.
func SynthesizeArchitecture(idea *models.Idea) models.Architecture {
	resource := resourceName(idea)
	stack := idea.TechStack
	if len(stack) == 0 {
		stack = []string{"React", "Node.js", "Express", "PostgreSQL"}
	}

	endpoints := []string{
		fmt.Sprintf("GET /api/%s - list %s", resource, resource),
		fmt.Sprintf("POST /api/%s - create an item", resource),
		fmt.Sprintf("GET /api/%s/:id - fetch one item", resource),
		fmt.Sprintf("PUT /api/%s/:id - update an item", resource),
		fmt.Sprintf("DELETE /api/%s/:id - delete an item", resource),
	}

	overview := fmt.Sprintf("%s is a three-tier web application: a single-page frontend, a REST API and a relational database.",
		idea.Name)

	return models.Architecture{
		Overview:  overview,
		Diagram:   "[Browser SPA] --HTTPS--> [REST API] --SQL--> [Database]",
		TechStack: append([]string{}, stack...),
		DatabaseSchema: []string{
			"users(id, email, name, created_at)",
			fmt.Sprintf("%s(id, user_id, title, details, created_at, updated_at)", resource),
		},
		APIEndpoints:   endpoints,
		DatabaseDesign: fmt.Sprintf("Each %s row belongs to a user through user_id. Timestamps support sorting by recency.", singular(resource)),
		APIDesign:      "JSON over HTTP with resource-oriented routes. Errors return an error field and a matching status code.",
	}
}

// SynthesizeFiles returns the starter files for an idea. The set is never empty.
func SynthesizeFiles(idea *models.Idea, arch models.Architecture) []models.GeneratedFile {
	resource := resourceName(idea)
	pkgName := slug(idea.Name)
	if pkgName == "" {
		pkgName = "starter-app"
	}

	var features strings.Builder
	for _, f := range idea.KeyFeatures {
		features.WriteString(fmt.Sprintf("            <li>%s</li>\n", escapeJSX(f)))
	}

	var readme strings.Builder
	readme.WriteString(fmt.Sprintf("# %s\n\n%s\n\n", idea.Name, idea.Description))
	if len(idea.KeyFeatures) > 0 {
		readme.WriteString("## Features\n\n")
		for _, f := range idea.KeyFeatures {
			readme.WriteString("- " + f + "\n")
		}
		readme.WriteString("\n")
	}
	readme.WriteString("## Architecture\n\n" + arch.Overview + "\n\n")
	for _, ep := range arch.APIEndpoints {
		readme.WriteString("- `" + ep + "`\n")
	}

	return []models.GeneratedFile{
		{
			Path:     "src/App.js",
			Language: "javascript",
			Category: models.FileCategoryFrontend,
			Content: fmt.Sprintf(`import React from 'react';
import Dashboard from './components/Dashboard';

export default function App() {
  return (
    <main className="app">
      <header>
        <h1>%s</h1>
        <p>%s</p>
      </header>
      <Dashboard />
    </main>
  );
}
`, escapeJSX(idea.Name), escapeJSX(idea.Tagline)),
			Explanation: "Root component rendering the header and dashboard.",
		},
		{
			Path:     "src/components/Dashboard.js",
			Language: "javascript",
			Category: models.FileCategoryFrontend,
			Content: fmt.Sprintf(`import React, { useEffect, useState } from 'react';

export default function Dashboard() {
  const [items, setItems] = useState([]);

  useEffect(() => {
    fetch('/api/%s')
      .then((res) => res.json())
      .then(setItems)
      .catch(() => setItems([]));
  }, []);

  return (
    <section>
      <h2>Features</h2>
      <ul>
%s      </ul>
      <h2>Your %s</h2>
      <ul>
        {items.map((item) => (
          <li key={item.id}>{item.title}</li>
        ))}
      </ul>
    </section>
  );
}
`, resource, features.String(), resource),
			Explanation: "Dashboard listing the product features and the user's items from the API.",
		},
		{
			Path:     "server/app.js",
			Language: "javascript",
			Category: models.FileCategoryBackend,
			Content: fmt.Sprintf(`const express = require('express');
const routes = require('./routes/%s');

const app = express();
app.use(express.json());
app.use('/api/%s', routes);

const port = process.env.PORT || 4000;
app.listen(port, () => console.log('API listening on ' + port));

module.exports = app;
`, resource, resource),
			Explanation: "Express server wiring the REST routes.",
		},
		{
			Path:     fmt.Sprintf("server/routes/%s.js", resource),
			Language: "javascript",
			Category: models.FileCategoryBackend,
			Content: `const express = require('express');
const db = require('../db');

const router = express.Router();

router.get('/', async (req, res) => {
  const { rows } = await db.query('SELECT * FROM ` + resource + ` ORDER BY created_at DESC');
  res.json(rows);
});

router.post('/', async (req, res) => {
  const { title, details } = req.body;
  if (!title) return res.status(400).json({ error: 'title is required' });
  const { rows } = await db.query(
    'INSERT INTO ` + resource + ` (title, details) VALUES ($1, $2) RETURNING *',
    [title, details || '']
  );
  res.status(201).json(rows[0]);
});

router.delete('/:id', async (req, res) => {
  await db.query('DELETE FROM ` + resource + ` WHERE id = $1', [req.params.id]);
  res.status(204).end();
});

module.exports = router;
`,
			Explanation: "CRUD routes backed by the database.",
		},
		{
			Path:     "server/db.js",
			Language: "javascript",
			Category: models.FileCategoryBackend,
			Content: `const { Pool } = require('pg');

module.exports = new Pool({ connectionString: process.env.DATABASE_URL });
`,
			Explanation: "PostgreSQL connection pool.",
		},
		{
			Path:     "db/schema.sql",
			Language: "sql",
			Category: models.FileCategoryDatabase,
			Content: fmt.Sprintf(`CREATE TABLE users (
    id SERIAL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    name TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE %s (
    id SERIAL PRIMARY KEY,
    user_id INTEGER REFERENCES users(id),
    title TEXT NOT NULL,
    details TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`, resource),
			Explanation: "Database schema matching the architecture.",
		},
		{
			Path:     "package.json",
			Language: "json",
			Category: models.FileCategoryConfig,
			Content: fmt.Sprintf(`{
  "name": %q,
  "version": "0.1.0",
  "private": true,
  "scripts": {
    "start": "react-scripts start",
    "build": "react-scripts build",
    "server": "node server/app.js",
    "test": "jest"
  },
  "dependencies": {
    "express": "^4.19.2",
    "pg": "^8.11.5",
    "react": "^18.3.1",
    "react-dom": "^18.3.1",
    "react-scripts": "5.0.1"
  },
  "devDependencies": {
    "jest": "^29.7.0",
    "supertest": "^7.0.0"
  }
}
`, pkgName),
			Explanation: "Project manifest with scripts and dependencies.",
		},
		{
			Path:        ".env.example",
			Language:    "dotenv",
			Category:    models.FileCategoryConfig,
			Content:     "PORT=4000\nDATABASE_URL=postgres://localhost:5432/" + strings.ReplaceAll(pkgName, "-", "_") + "\n",
			Explanation: "Environment variables the server reads.",
		},
		{
			Path:        "README.md",
			Language:    "markdown",
			Category:    models.FileCategoryDocs,
			Content:     readme.String(),
			Explanation: "Project overview, features and API summary.",
		},
	}
}

// resourceName picks a plural REST resource name from the idea's keyword.
func resourceName(idea *models.Idea) string {
	base := slug(idea.Keyword)
	if base == "" {
		return "items"
	}
	return inflection.Plural(strings.ReplaceAll(base, "-", "_"))
}

func singular(resource string) string {
	return inflection.Singular(resource)
}

// slug lower-cases s and keeps letters and digits, joining words with dashes.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func capitalize(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}

func escapeJSX(s string) string {
	r := strings.NewReplacer("{", "&#123;", "}", "&#125;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

package security

// ruleGroup declares the raw patterns for one finding category at one level.
// Groups are compiled once at Checker construction; the tables here are
// configuration data, not runtime-mutable state.
type ruleGroup struct {
	category    string
	patterns    []string
	description string
}

// contentRules lists rule groups per level. Classification walks levels in
// descending order so the effective level is the highest level with a match.
var contentRules = map[Level][]ruleGroup{
	LevelTopSecret: {
		{
			category: "critical_infrastructure",
			patterns: []string{
				`(?i)\b(nuclear|reactor|enrichment|uranium|plutonium)\b`,
				`(?i)\b(scada|ics|plc|dcs|hmi)\s*(system|control|network)`,
				`(?i)\b(grid\s*attack|cyber\s*attack|vulnerability\s*exploit)`,
				`(?i)\b(classified|top\s*secret|ts/sci)\b`,
			},
			description: "Critical infrastructure and classified content",
		},
		{
			category: "national_security",
			patterns: []string{
				`(?i)\b(defense|military|weapon|ammunition)\s*(system|facility|program)`,
				`(?i)\b(intelligence|espionage|covert|clandestine)\b`,
			},
			description: "National security related content",
		},
	},
	LevelRestricted: {
		{
			category: "pii_ssn",
			patterns: []string{
				`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`,
			},
			description: "Social Security Numbers",
		},
		{
			category: "pii_financial",
			patterns: []string{
				`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`,
				`(?i)\b(bank\s*account|routing\s*number|iban|swift)\s*[:=]?\s*\d+`,
			},
			description: "Financial account information",
		},
		{
			category: "credentials",
			patterns: []string{
				`(?i)\b(password|passwd|pwd|secret|api[_\s]?key|token)\s*[:=]\s*\S+`,
				`(?i)\b(private\s*key|ssh\s*key|rsa\s*key)`,
			},
			description: "Credentials and access keys",
		},
		{
			category: "medical",
			patterns: []string{
				`(?i)\b(patient|medical\s*record|diagnosis|prescription|hipaa)\b`,
				`(?i)\b(health\s*insurance|medical\s*history)\b`,
			},
			description: "Medical and health records",
		},
	},
	LevelConfidential: {
		{
			category: "salary_compensation",
			patterns: []string{
				`(?i)\b(salary|compensation|wage|bonus|stock\s*option)\s*[:=]?\s*\$?\d+`,
				`(?i)\b(annual\s*income|pay\s*grade|hourly\s*rate)\b`,
			},
			description: "Salary and compensation data",
		},
		{
			category: "proprietary",
			patterns: []string{
				`(?i)\b(proprietary|trade\s*secret|confidential|nda)\b`,
				`(?i)\b(internal\s*only|do\s*not\s*distribute)\b`,
			},
			description: "Proprietary business information",
		},
		{
			category: "financial_reports",
			patterns: []string{
				`(?i)\b(revenue|profit|loss|earnings|quarterly\s*report)\s*[:=]?\s*\$?\d+`,
				`(?i)\b(forecast|projection|budget)\s*[:=]?\s*\$?\d+`,
			},
			description: "Financial reports and projections",
		},
		{
			category: "energy_sensitive",
			patterns: []string{
				`(?i)\b(power\s*plant|generation\s*capacity|grid\s*topology)\s*(data|info|detail)`,
				`(?i)\b(substation|transformer|transmission\s*line)\s*(location|coordinate)`,
			},
			description: "Sensitive energy infrastructure details",
		},
	},
	LevelInternal: {
		{
			category: "employee_info",
			patterns: []string{
				`(?i)\b(employee\s*id|staff\s*number|personnel)\s*[:=]?\s*\w+`,
				`(?i)\b(internal\s*memo|internal\s*communication)\b`,
			},
			description: "Employee and internal communications",
		},
		{
			category: "operational",
			patterns: []string{
				`(?i)\b(maintenance\s*schedule|outage\s*plan|operational\s*procedure)\b`,
				`(?i)\b(internal\s*process|workflow|sop)\b`,
			},
			description: "Operational procedures",
		},
	},
}

// queryKeywords drives the query-side check. Substring match, levels walked
// in descending order, first hit wins.
var queryKeywords = map[Level][]string{
	LevelTopSecret: {
		"nuclear", "reactor", "scada", "ics", "classified", "top secret",
		"cyber attack", "vulnerability", "exploit", "defense system",
	},
	LevelRestricted: {
		"ssn", "social security", "credit card", "bank account", "password",
		"api key", "private key", "patient", "medical record", "hipaa",
	},
	LevelConfidential: {
		"salary", "compensation", "bonus", "revenue", "profit", "earnings",
		"proprietary", "trade secret", "nda", "grid topology", "substation location",
	},
	LevelInternal: {
		"employee id", "internal memo", "maintenance schedule", "outage plan",
	},
}

// recommendations maps a detected level to ingestion guidance.
var recommendations = map[Level]string{
	LevelPublic:       "Document can be shared publicly.",
	LevelInternal:     "Document should be limited to internal personnel.",
	LevelConfidential: "Document contains confidential data. Restrict access.",
	LevelRestricted:   "Document contains highly sensitive PII/credentials. Strict access control required.",
	LevelTopSecret:    "Document contains critical/classified information. Maximum security required.",
}

package pricing

import (
	"html"
	"strings"
)

var knownFeatures = []string{
	"All Pro features",
	"All Lite features",
	"Workforce Planning & Budgeting",
	"Multi-Company & Multi Currency",
	"PAN-India Compliance Tracker",
	"Role based Access Control",
	"Advanced BI Analytics",
	"360° Performance Analysis",
	"White-label Branding",
	"Recruitment & Onboarding",
	"Expense & Reimbursement Mgmt",
	"Performance Appraisal",
	"Workflow Automation",
	"Advanced Payroll",
	"Exit & FNF Process",
	"Statutory Compliance",
	"Payslips & ESS Portal",
}

// ParseModules извлекает список модулей тарифа из его описания.
// Многострочное описание разбивается по строкам, иначе ищутся известные модули,
// а если ни один не найден, возвращается весь текст одной строкой.
func ParseModules(description string) []string {
	if description == "" {
		return nil
	}
	text := html.UnescapeString(description)

	if strings.Contains(text, "\n") {
		var out []string
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
		return out
	}

	lower := strings.ToLower(text)
	var found []string
	for _, f := range knownFeatures {
		if strings.Contains(lower, strings.ToLower(f)) {
			found = append(found, f)
		}
	}
	if len(found) > 0 {
		return found
	}
	return []string{text}
}

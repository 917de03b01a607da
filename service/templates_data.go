package service

import "contract-guard/types"

// DefaultTemplates 内置模板，启动时写入存储
func DefaultTemplates() []types.Template {
	return []types.Template{
		{
			ID:           "tech-saas-001",
			Name:         "SaaS Subscription Agreement",
			Industry:     types.IndustryTechnology,
			ContractType: "saas",
			Category:     types.CategoryLegal,
			Content:      "This Subscription Agreement is entered into between {{provider}} and {{customer}} effective {{effective_date}}. The service level target is {{uptime}} monthly availability.",
			Variables: []types.Variable{
				{Name: "provider", Description: "Service provider legal name", Required: true},
				{Name: "customer", Description: "Customer legal name", Required: true},
				{Name: "effective_date", Description: "Agreement start date", Required: true},
				{Name: "uptime", Description: "Committed availability, e.g. 99.9%", Required: false},
			},
		},
		{
			ID:           "tech-nda-001",
			Name:         "Mutual Non-Disclosure Agreement",
			Industry:     types.IndustryTechnology,
			ContractType: "nda",
			Category:     types.CategoryCompliance,
			Content:      "{{party_a}} and {{party_b}} agree to keep Confidential Information secret for {{term_years}} years from disclosure.",
			Variables: []types.Variable{
				{Name: "party_a", Description: "First party", Required: true},
				{Name: "party_b", Description: "Second party", Required: true},
				{Name: "term_years", Description: "Confidentiality term in years", Required: true},
			},
		},
		{
			ID:           "health-baa-001",
			Name:         "Business Associate Agreement",
			Industry:     types.IndustryHealthcare,
			ContractType: "baa",
			Category:     types.CategoryCompliance,
			Content:      "{{covered_entity}} engages {{business_associate}} to handle protected health information under applicable privacy regulations.",
			Variables: []types.Variable{
				{Name: "covered_entity", Description: "Covered entity name", Required: true},
				{Name: "business_associate", Description: "Business associate name", Required: true},
			},
		},
		{
			ID:           "finance-loan-001",
			Name:         "Commercial Loan Agreement",
			Industry:     types.IndustryFinance,
			ContractType: "loan",
			Category:     types.CategoryFinancial,
			Content:      "{{lender}} agrees to lend {{borrower}} the principal sum of {{principal}} at an annual interest rate of {{rate}}.",
			Variables: []types.Variable{
				{Name: "lender", Description: "Lender name", Required: true},
				{Name: "borrower", Description: "Borrower name", Required: true},
				{Name: "principal", Description: "Principal amount", Required: true},
				{Name: "rate", Description: "Annual interest rate", Required: true},
			},
		},
		{
			ID:           "re-lease-001",
			Name:         "Commercial Lease",
			Industry:     types.IndustryRealEstate,
			ContractType: "lease",
			Category:     types.CategoryLegal,
			Content:      "{{landlord}} leases the premises at {{address}} to {{tenant}} for a term of {{term_months}} months at a monthly rent of {{rent}}.",
			Variables: []types.Variable{
				{Name: "landlord", Description: "Landlord name", Required: true},
				{Name: "tenant", Description: "Tenant name", Required: true},
				{Name: "address", Description: "Premises address", Required: true},
				{Name: "term_months", Description: "Lease term in months", Required: true},
				{Name: "rent", Description: "Monthly rent", Required: true},
			},
		},
		{
			ID:           "mfg-supply-001",
			Name:         "Supply Agreement",
			Industry:     types.IndustryManufacturing,
			ContractType: "supply",
			Category:     types.CategoryFinancial,
			Content:      "{{supplier}} shall deliver {{goods}} to {{buyer}} under the delivery schedule in Exhibit A. Late delivery incurs liquidated damages of {{penalty}} per day.",
			Variables: []types.Variable{
				{Name: "supplier", Description: "Supplier name", Required: true},
				{Name: "buyer", Description: "Buyer name", Required: true},
				{Name: "goods", Description: "Goods description", Required: true},
				{Name: "penalty", Description: "Daily liquidated damages", Required: false},
			},
		},
		{
			ID:           "general-services-001",
			Name:         "General Services Agreement",
			Industry:     types.IndustryOther,
			ContractType: "services",
			Category:     types.CategoryLegal,
			Content:      "{{client}} engages {{contractor}} to perform the services described in the statement of work for a fee of {{fee}}.",
			Variables: []types.Variable{
				{Name: "client", Description: "Client name", Required: true},
				{Name: "contractor", Description: "Contractor name", Required: true},
				{Name: "fee", Description: "Total fee", Required: true},
			},
		},
	}
}

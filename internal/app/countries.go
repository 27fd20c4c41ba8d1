package app

// Country is a supported registration country.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SupportedCountries is the launch list, West Africa only for now.
var SupportedCountries = []Country{
	{Code: "LR", Name: "Liberia"},
	{Code: "SL", Name: "Sierra Leone"},
	{Code: "GN", Name: "Guinea"},
	{Code: "GH", Name: "Ghana"},
	{Code: "CI", Name: "Côte d'Ivoire"},
	{Code: "NG", Name: "Nigeria"},
	{Code: "SN", Name: "Senegal"},
	{Code: "GM", Name: "Gambia"},
}

// CountryName resolves a code to its display name, falling back to the code.
func CountryName(code string) string {
	for _, c := range SupportedCountries {
		if c.Code == code {
			return c.Name
		}
	}
	return code
}

func IsSupportedCountry(code string) bool {
	for _, c := range SupportedCountries {
		if c.Code == code {
			return true
		}
	}
	return false
}

package families

import "strings"

// TaiwanCounties lists county and city names in their official 臺 spelling.
var TaiwanCounties = []string{
	"臺北市", "新北市", "桃園市", "臺中市", "臺南市", "高雄市",
	"基隆市", "新竹市", "嘉義市",
	"新竹縣", "苗栗縣", "彰化縣", "南投縣", "雲林縣", "嘉義縣",
	"屏東縣", "宜蘭縣", "花蓮縣", "臺東縣", "澎湖縣", "金門縣", "連江縣",
}

// NormalizeCounty converts the common 台 spelling of a county name to 臺.
// Unrecognized names are returned trimmed but otherwise as-is.
func NormalizeCounty(s string) string {
	s = strings.TrimSpace(s)
	official := strings.ReplaceAll(s, "台", "臺")
	for _, c := range TaiwanCounties {
		if official == c {
			return c
		}
	}
	return s
}

// NormalizeEmail lowercases an address so it can serve as a lookup key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

package tpex

import "twmarket/internal/sources"

// IndexSeries lists the columns of the one minute index table after the
// time column. Turnover and order book columns follow and are ignored.
var IndexSeries = []sources.IndexSeries{
	{Symbol: "IX0044", Name: "櫃檯紡纖類指數"},
	{Symbol: "IX0045", Name: "櫃檯機械類指數"},
	{Symbol: "IX0046", Name: "櫃檯鋼鐵類指數"},
	{Symbol: "IX0048", Name: "櫃檯營建類指數"},
	{Symbol: "IX0049", Name: "櫃檯航運類指數"},
	{Symbol: "IX0050", Name: "櫃檯觀光類指數"},
	{Symbol: "IX0100", Name: "櫃檯其他類指數"},
	{Symbol: "IX0051", Name: "櫃檯化工類指數"},
	{Symbol: "IX0052", Name: "櫃檯生技醫療類指數"},
	{Symbol: "IX0053", Name: "櫃檯半導體類指數"},
	{Symbol: "IX0054", Name: "櫃檯電腦及週邊類指數"},
	{Symbol: "IX0055", Name: "櫃檯光電業類指數"},
	{Symbol: "IX0056", Name: "櫃檯通信網路類指數"},
	{Symbol: "IX0057", Name: "櫃檯電子零組件類指數"},
	{Symbol: "IX0058", Name: "櫃檯電子通路類指數"},
	{Symbol: "IX0059", Name: "櫃檯資訊服務類指數"},
	{Symbol: "IX0099", Name: "櫃檯其他電子類指數"},
	{Symbol: "IX0075", Name: "櫃檯文化創意業類指數"},
	{Symbol: "IX0047", Name: "櫃檯電子類指數"},
	{Symbol: "IX0043", Name: "櫃檯指數"},
}

// sectorSymbols maps sector turnover row names to index symbols
var sectorSymbols = map[string]string{
	"紡織纖維":     "IX0044",
	"電機機械":     "IX0045",
	"鋼鐵工業":     "IX0046",
	"建材營造":     "IX0048",
	"航運業":      "IX0049",
	"觀光事業":     "IX0050",
	"其他":       "IX0100",
	"化學工業":     "IX0051",
	"生技醫療業":    "IX0052",
	"半導體業":     "IX0053",
	"電腦及週邊設備業": "IX0054",
	"光電業":      "IX0055",
	"通信網路業":    "IX0056",
	"電子零組件業":   "IX0057",
	"電子通路業":    "IX0058",
	"資訊服務業":    "IX0059",
	"其他電子業":    "IX0099",
	"文化創意業":    "IX0075",
}

// ElectronicsMembers are the sub-sectors summed into the electronics
// aggregate, which the sector table does not report itself.
var ElectronicsMembers = []string{
	"IX0053", "IX0054", "IX0055", "IX0056", "IX0057", "IX0058", "IX0059", "IX0099",
}

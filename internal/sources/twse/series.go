package twse

import "twmarket/internal/sources"

// IndexSeries lists the columns of the five second index table after the
// time column.
var IndexSeries = []sources.IndexSeries{
	{Symbol: "IX0001", Name: "發行量加權股價指數"},
	{Symbol: "IX0007", Name: "未含金融保險股指數"},
	{Symbol: "IX0008", Name: "未含電子股指數"},
	{Symbol: "IX0009", Name: "未含金融電子股指數"},
	{Symbol: "IX0010", Name: "水泥類指數"},
	{Symbol: "IX0011", Name: "食品類指數"},
	{Symbol: "IX0012", Name: "塑膠類指數"},
	{Symbol: "IX0016", Name: "紡織纖維類指數"},
	{Symbol: "IX0017", Name: "電機機械類指數"},
	{Symbol: "IX0018", Name: "電器電纜類指數"},
	{Symbol: "IX0019", Name: "化學生技醫療類指數"},
	{Symbol: "IX0020", Name: "化學類指數"},
	{Symbol: "IX0021", Name: "生技醫療類指數"},
	{Symbol: "IX0022", Name: "玻璃陶瓷類指數"},
	{Symbol: "IX0023", Name: "造紙類指數"},
	{Symbol: "IX0024", Name: "鋼鐵類指數"},
	{Symbol: "IX0025", Name: "橡膠類指數"},
	{Symbol: "IX0026", Name: "汽車類指數"},
	{Symbol: "IX0027", Name: "電子工業類指數"},
	{Symbol: "IX0028", Name: "半導體類指數"},
	{Symbol: "IX0029", Name: "電腦及週邊設備類指數"},
	{Symbol: "IX0030", Name: "光電類指數"},
	{Symbol: "IX0031", Name: "通信網路類指數"},
	{Symbol: "IX0032", Name: "電子零組件類指數"},
	{Symbol: "IX0033", Name: "電子通路類指數"},
	{Symbol: "IX0034", Name: "資訊服務類指數"},
	{Symbol: "IX0035", Name: "其他電子類指數"},
	{Symbol: "IX0036", Name: "建材營造類指數"},
	{Symbol: "IX0037", Name: "航運類指數"},
	{Symbol: "IX0038", Name: "觀光類指數"},
	{Symbol: "IX0039", Name: "金融保險類指數"},
	{Symbol: "IX0040", Name: "貿易百貨類指數"},
	{Symbol: "IX0041", Name: "油電燃氣類指數"},
	{Symbol: "IX0042", Name: "其他類指數"},
}

// Sector rows whose turnover already includes other sectors. They are
// kept but left out of the weight denominator.
var aggregateSectors = map[string]struct{}{
	"IX0019": {},
	"IX0027": {},
}

var sectorSymbols = func() map[string]string {
	m := make(map[string]string, len(IndexSeries))
	for _, s := range IndexSeries[4:] {
		m[s.Name] = s.Symbol
	}
	return m
}()

// sectorSymbol maps a sector turnover row name to its index symbol. The
// turnover table names sectors with or without the 指數 suffix.
func sectorSymbol(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if sym, ok := sectorSymbols[name]; ok {
		return sym, true
	}
	sym, ok := sectorSymbols[name+"指數"]
	return sym, ok
}

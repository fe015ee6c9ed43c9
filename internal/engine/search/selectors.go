package search

// DOM markers of the maps UI. Contains-matches are used where the class carries a generated suffix.
const (
	searchBoxSel      = "#searchboxinput"
	searchButtonSel   = "#searchbox-searchbutton"
	badQuerySel       = `[class*="section-bad-query"]`
	noResultsXPath    = `//div[contains(text(), "No results found")]`
	placeTitleSel     = "h1.DUwDvf"
	resultLinkSel     = "a.hfpxzc"
	endOfResultsSel   = ".HlvSq"
	mapLoaderSel      = ".loading-spinner"
	dismissOverlaySel = `button[aria-label*="Dismiss"]`
)

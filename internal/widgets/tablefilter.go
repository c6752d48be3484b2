package widgets

import (
	"strings"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/capability"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

const (
	tableFilterSelector    = ".table-filter"
	searchInputSelector    = `input[type="search"]`
	tableRowsSelector      = "tbody tr"
	tableBodySelector      = "tbody"
	noResultsClass         = "no-results-message"
	noResultsSelector      = ".no-results-message"
	noResultsCellClass     = "text-center"
	noResultsCellColspan   = "100%"
	attributeKeyTarget     = "target"
	attributeClassName     = "class"
	attributeColspan       = "colspan"
	styleDisplay           = "display"
	displayNone            = "none"
	reasonNoTableFilters   = "no .table-filter with a target table and search input"
	logEventFilterSelector = "table_filter_target_invalid"
	logFieldFilterTarget   = "target"

	// NoResultsPrefix starts the message shown when every row is filtered out.
	NoResultsPrefix = "ไม่พบข้อมูลที่ค้นหา "
)

// InitTableFilters wires every .table-filter: typing in its search input hides
// rows of the data-target table that do not contain the term and shows a
// no-results row when nothing matches.
func InitTableFilters(environment Environment) capability.Result {
	environment = environment.normalized()
	document := environment.Document

	wired := 0
	for _, filter := range document.QuerySelectorAll(tableFilterSelector) {
		targetSelector, _ := filter.Data(attributeKeyTarget)
		if strings.TrimSpace(targetSelector) == "" {
			continue
		}
		table, tableFound := queryTarget(environment, targetSelector)
		searchInput, inputFound := filter.QuerySelector(searchInputSelector)
		if !tableFound || !inputFound {
			continue
		}
		input := searchInput
		input.AddEventListener(dom.EventInput, func(*dom.Event) {
			FilterTable(document, table, input.Value())
		})
		wired++
	}

	if wired == 0 {
		return capability.NotApplicable(ModuleTableFilters, reasonNoTableFilters)
	}
	return capability.Applied(ModuleTableFilters)
}

func queryTarget(environment Environment, selector string) (*dom.Element, bool) {
	if selectorErr := dom.ValidateSelector(selector); selectorErr != nil {
		environment.Logger.Warn(logEventFilterSelector, zap.String(logFieldFilterTarget, selector), zap.Error(selectorErr))
		return nil, false
	}
	return environment.Document.QuerySelector(selector)
}

// FilterTable shows the body rows of table containing term, compared without
// case, and keeps the no-results row in step with the outcome. It returns the
// number of visible rows.
func FilterTable(document *dom.Document, table *dom.Element, term string) int {
	searchTerm := strings.ToLower(term)
	visible := 0
	for _, row := range table.QuerySelectorAll(tableRowsSelector) {
		if row.HasClass(noResultsClass) {
			continue
		}
		if strings.Contains(strings.ToLower(row.TextContent()), searchTerm) {
			row.SetStyle(styleDisplay, "")
			visible++
			continue
		}
		row.SetStyle(styleDisplay, displayNone)
	}

	message, messageFound := table.QuerySelector(noResultsSelector)
	switch {
	case visible == 0 && !messageFound:
		if tbody, found := table.QuerySelector(tableBodySelector); found {
			tbody.AppendChild(noResultsRow(document, searchTerm))
		}
	case visible > 0 && messageFound:
		message.Remove()
	}
	return visible
}

// noResultsRow builds the message row from nodes, so the term is always text.
func noResultsRow(document *dom.Document, searchTerm string) *dom.Element {
	row := document.CreateElement("tr")
	row.SetAttribute(attributeClassName, noResultsClass)
	cell := document.CreateElement("td")
	cell.SetAttribute(attributeColspan, noResultsCellColspan)
	cell.SetAttribute(attributeClassName, noResultsCellClass)
	cell.SetTextContent(NoResultsPrefix + `"` + searchTerm + `"`)
	row.AppendChild(cell)
	return row
}

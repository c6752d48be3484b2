package widgets

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/qareport/internal/capability"
	"github.com/MarkoPoloResearchLab/qareport/internal/dom"
)

const (
	// RangeMode selects a start and end date.
	RangeMode = "range"
	// DateFormatYMD is the picker's Y-m-d display format.
	DateFormatYMD = "Y-m-d"
	// DefaultRangeSpan is how far back the default range starts.
	DefaultRangeSpan = 14 * 24 * time.Hour

	// RangeSeparator joins the two dates written to #date-range-display.
	RangeSeparator = " ถึง "

	dateRangePickerID    = "date-range-picker"
	dateRangeDisplayID   = "date-range-display"
	isoDateLayout        = "2006-01-02"
	inputTypeDate        = "date"
	attributeType        = "type"
	pickerValueSeparator = " to "

	reasonDatePickerMissing = "#date-range-picker missing"

	logEventRangePickerAttachFailed = "date_range_picker_attach_failed"
	logEventRangeSelected           = "date_range_selected"
	logFieldRangeStart              = "start"
	logFieldRangeEnd                = "end"

	errorMessageUnsupportedMode = "widgets: unsupported picker mode"
)

// ErrUnsupportedPickerMode is returned by pickers that cannot honour the
// requested mode.
var ErrUnsupportedPickerMode = errors.New(errorMessageUnsupportedMode)

// RangePickerOptions configures a date range picker.
type RangePickerOptions struct {
	Mode         string
	DateFormat   string
	DefaultDates []time.Time
	OnChange     func(selected []time.Time)
}

// RangePicker attaches a date picker to an input element.
type RangePicker interface {
	Attach(input *dom.Element, options RangePickerOptions) error
}

// InitDateRangePicker attaches the range picker to #date-range-picker. When no
// picker is available the input becomes a native date input holding today.
func InitDateRangePicker(environment Environment) capability.Result {
	environment = environment.normalized()
	input, found := environment.Document.ElementByID(dateRangePickerID)
	if !found {
		return capability.NotApplicable(ModuleDateRangePicker, reasonDatePickerMissing)
	}

	now := environment.Clock.Now()
	if environment.RangePicker == nil {
		useNativeDateInput(input, now)
		return capability.Applied(ModuleDateRangePicker)
	}

	options := RangePickerOptions{
		Mode:         RangeMode,
		DateFormat:   DateFormatYMD,
		DefaultDates: []time.Time{now.Add(-DefaultRangeSpan), now},
		OnChange: func(selected []time.Time) {
			if len(selected) != 2 {
				return
			}
			startDate := FormatDate(selected[0])
			endDate := FormatDate(selected[1])
			environment.Logger.Debug(logEventRangeSelected,
				zap.String(logFieldRangeStart, startDate),
				zap.String(logFieldRangeEnd, endDate),
			)
			updateDateRangeDisplay(environment.Document, startDate, endDate)
			if environment.Refresh != nil {
				environment.Refresh(startDate, endDate)
			}
		},
	}
	if attachErr := environment.RangePicker.Attach(input, options); attachErr != nil {
		environment.Logger.Warn(logEventRangePickerAttachFailed, zap.Error(attachErr))
		useNativeDateInput(input, now)
	}
	return capability.Applied(ModuleDateRangePicker)
}

// FormatDate renders the UTC calendar date as YYYY-MM-DD.
func FormatDate(moment time.Time) string {
	return moment.UTC().Format(isoDateLayout)
}

func useNativeDateInput(input *dom.Element, now time.Time) {
	input.SetAttribute(attributeType, inputTypeDate)
	input.SetValue(FormatDate(now))
}

func updateDateRangeDisplay(document *dom.Document, startDate string, endDate string) {
	display, found := document.ElementByID(dateRangeDisplayID)
	if !found {
		return
	}
	display.SetTextContent(startDate + RangeSeparator + endDate)
}

// InputRangePicker is a RangePicker that keeps its selection in the input's
// value. Select plays the part of the user picking dates.
type InputRangePicker struct {
	mutex    sync.Mutex
	input    *dom.Element
	options  RangePickerOptions
	selected []time.Time
}

// NewInputRangePicker builds an unattached InputRangePicker.
func NewInputRangePicker() *InputRangePicker {
	return &InputRangePicker{}
}

func (picker *InputRangePicker) Attach(input *dom.Element, options RangePickerOptions) error {
	if options.Mode != RangeMode {
		return ErrUnsupportedPickerMode
	}
	picker.mutex.Lock()
	picker.input = input
	picker.options = options
	picker.selected = append([]time.Time(nil), options.DefaultDates...)
	picker.mutex.Unlock()
	picker.render()
	return nil
}

// Options returns the options the picker was attached with.
func (picker *InputRangePicker) Options() RangePickerOptions {
	picker.mutex.Lock()
	defer picker.mutex.Unlock()
	return picker.options
}

// Selected returns the current selection.
func (picker *InputRangePicker) Selected() []time.Time {
	picker.mutex.Lock()
	defer picker.mutex.Unlock()
	return append([]time.Time(nil), picker.selected...)
}

// Select replaces the selection and notifies the change handler.
func (picker *InputRangePicker) Select(dates ...time.Time) {
	picker.mutex.Lock()
	picker.selected = append([]time.Time(nil), dates...)
	onChange := picker.options.OnChange
	picker.mutex.Unlock()
	picker.render()
	if onChange != nil {
		onChange(picker.Selected())
	}
}

func (picker *InputRangePicker) render() {
	picker.mutex.Lock()
	defer picker.mutex.Unlock()
	if picker.input == nil {
		return
	}
	formatted := make([]string, 0, len(picker.selected))
	for _, date := range picker.selected {
		formatted = append(formatted, date.Format(isoDateLayout))
	}
	picker.input.SetValue(strings.Join(formatted, pickerValueSeparator))
}

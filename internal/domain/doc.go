// Package domain models the climate observation dataset and its yearly
// aggregates.
//
// # Data Source
//
// Observations come from CSV exports of the "Global Climate Records"
// dataset, one row per country and date. The pipeline reads every CSV file
// in the dataset directory, so a dataset split across several exports is
// handled the same way as a single file.
//
// # Column Conventions
//
// Header names select fields; column order does not matter:
//
//	Date            calendar date, e.g. "2000-01-01" or "2000-01-01 00:00:00.000000000"
//	Country         country name, kept verbatim (no alias resolution)
//	Location        free-text place name, unreliable in the source data, dropped
//	Temperature     degrees Celsius
//	CO2 Emissions   ppm (or normalized units, as published)
//	Sea Level Rise  millimetres, may be negative
//	Precipitation   millimetres
//	Humidity        percent
//	Wind Speed      km/h
//
// Countries are compared by exact string match: "Viet Nam" and "Vietnam"
// are two distinct series.
//
// # Row Validation
//
// A row is accepted only when it has exactly as many fields as the header,
// its date parses, its country is non-empty, and every numeric column parses
// to a finite number. Anything else is rejected with a [RowError] carrying
// one of the Reason* codes. Rejected rows never reach aggregation, so NaN
// and Inf cannot leak into the trend artifacts.
//
// # Aggregation
//
// Observations are bucketed by UTC calendar year. Global buckets track all
// six metrics; country buckets track temperature, CO2 and sea level only.
// Buckets are finalized into arithmetic means and emitted in ascending
// numeric year order. See [Aggregate].
package domain

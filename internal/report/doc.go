// Package report renders the after-hours workbook.
//
// The workbook carries one market information sheet covering the trailing
// statistics window, followed by money flow, most actives, top movers and
// institutional net buy/sell sheets for the TSE and OTC boards. Amounts are
// shown in 億 and volumes in 張. The statistics window can also be written
// as a CSV file for tools that do not read xlsx.
package report

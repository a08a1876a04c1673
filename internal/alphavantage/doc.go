// Package alphavantage provides the Alpha Vantage REST client used to fetch daily prices.
//
// Endpoint:
//   - GET https://www.alphavantage.co/query?function=TIME_SERIES_DAILY_ADJUSTED&symbol=IBM&apikey=KEY
//
// The API reports throttling and bad requests inside HTTP 200 bodies ("Note",
// "Information", "Error Message"). Those are surfaced as *SoftError and retried
// exactly like transport failures.
package alphavantage

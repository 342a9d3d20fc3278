// Package crawler implements the job board crawling engine: the fetcher
// contract, the selector strategies and page parser, description lookups,
// deduplication and the pipeline that ties them together.
package crawler

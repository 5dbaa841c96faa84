// Package binance implements the Binance spot REST API.
//
// The package includes:
//   - Protocol: per-operation request building with exchange parameter order
//   - Client: the exchange.Exchange implementation over a signing dispatcher
//   - Decoders: conversion from raw responses to canonical core types
//
// Example usage:
//
//	client, err := binance.New(core.DefaultConfig().WithCredentials(creds))
//	resp, err := client.OrderBook(ctx, "BTCUSDT", exchange.WithLimit(10))
//	book, err := binance.DecodeOrderBook(resp, "BTCUSDT")
package binance

/*
Copyright 2025 QuickApiMapper Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package transform

// Builtins returns the built-in transformer catalog. Arguments a transformer
// reads from its args map are listed in the description.
func Builtins() []Transformer {
	return []Transformer{
		{
			Name:        "uppercase",
			Description: "Convert text to uppercase",
			Apply:       transformUppercase,
		},
		{
			Name:        "lowercase",
			Description: "Convert text to lowercase",
			Apply:       transformLowercase,
		},
		{
			Name:        "trim",
			Description: "Trim leading and trailing whitespace",
			Apply:       transformTrim,
		},
		{
			Name:        "title",
			Description: "Capitalize the first letter of each word",
			Apply:       transformTitle,
		},
		{
			Name:        "reverse",
			Description: "Reverse the characters of the value",
			Apply:       transformReverse,
		},
		{
			Name:        "base64encode",
			Description: "Encode the value as standard base64",
			Apply:       transformBase64Encode,
		},
		{
			Name:        "base64decode",
			Description: "Decode a standard base64 value",
			Apply:       transformBase64Decode,
		},
		{
			Name:        "urlencode",
			Description: "Percent-encode the value for use in a query string",
			Apply:       transformURLEncode,
		},
		{
			Name:        "urldecode",
			Description: "Decode a percent-encoded value",
			Apply:       transformURLDecode,
		},
		{
			Name:        "sha256",
			Description: "Hex-encoded SHA-256 digest of the value",
			Apply:       transformSHA256,
		},
		{
			Name:        "md5",
			Description: "Hex-encoded MD5 digest of the value",
			Apply:       transformMD5,
		},
		{
			Name:        "replace",
			Description: "Replace occurrences of args[old] with args[new]",
			Apply:       transformReplace,
		},
		{
			Name:        "substring",
			Description: "Slice the value from args[start] for args[length] characters",
			Apply:       transformSubstring,
		},
		{
			Name:        "prepend",
			Description: "Prefix the value with args[value]",
			Apply:       transformPrepend,
		},
		{
			Name:        "append",
			Description: "Suffix the value with args[value]",
			Apply:       transformAppend,
		},
		{
			Name:        "default",
			Description: "Substitute args[value] when the value is empty",
			Apply:       transformDefault,
		},
		{
			Name:        "numberformat",
			Description: "Format a decimal number to args[decimals] places",
			Apply:       transformNumberFormat,
		},
		{
			Name:        "dateformat",
			Description: "Reparse a date from layout args[from] to layout args[to] (\"unix\" for epoch seconds)",
			Apply:       transformDateFormat,
		},
		{
			Name:        "uuid",
			Description: "Replace the value with a freshly generated UUID",
			Apply:       transformUUID,
		},
	}
}

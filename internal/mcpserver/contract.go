package mcpserver

// MetadataFormatContract describes the metadata payload that photos carry
// and how LLM consumers should read, edit and filter it.
const MetadataFormatContract = `# metaedit Metadata Contract

Each JPEG keeps its custom metadata as a JSON object in the EXIF
ImageDescription tag (IFD0, tag 0x010E). Every other EXIF tag is left
untouched when a photo is edited.

## Payload

` + "```" + `json
{
  "people":   "Alice, Bob",
  "location": "Paris, France",
  "date":     "2021-07-14",
  "group":    "holiday",
  "comment":  "fireworks over the river"
}
` + "```" + `

## Rules

1. **All keys are optional.** A missing key means the field was never set.
   An empty string means the field was set and then cleared.
2. **people** is one string of names separated by commas. Names are trimmed
   and empty names are dropped. Names are stored sorted and joined with ", ".
3. **Text fields** (location, date, group, comment) are free-form. There is
   no date format; store what the user would search for.
4. **Unknown keys** in an existing payload are kept when the photo is edited.
5. **Legacy descriptions** that are not a JSON object (for example camera
   captions) read as an empty record and are replaced on the first edit.
6. **Encoding:** the stored text is ASCII; other characters are written as
   JSON \u escapes and read back unchanged.

## Filtering

- Every given filter must match (AND).
- Text filters match when the field is present and contains the filter as a
  case-insensitive substring.
- The people filter matches when every listed name is in the photo's people,
  compared case-insensitively and as whole names.
- A photo without a field never matches a filter on that field.
- Results keep library scan order.

## Paths

Photo paths are relative to the library root and use forward slashes
(` + "`" + `2021/summer/img_0042.jpg` + "`" + `).

## Editing safely

Pass the checksum returned by get_photo to update_photo. If the file changed
in between, the update is rejected and nothing is written.
`

// Command massupload runs spreadsheet uploads from the command line against
// the same store the web service uses.
//
//	massupload types
//	massupload template --type PART_MASTER --out parts.xlsx
//	massupload run --type PART_MASTER --user planner parts-*.xlsx
//	massupload run --type PART_MASTER --user planner ./inbox
//	massupload history --user planner > history.csv
package main

func main() {
	Execute()
}
